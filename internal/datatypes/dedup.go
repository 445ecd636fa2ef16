// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "fmt"

// DedupToolIDs renames duplicate call_ids in a Responses-shape item list so
// every function_call_output matches exactly one function_call, FIFO. The
// first occurrence of a call_id keeps it; the second is renamed "X-dup2",
// the third "X-dup3", and so on. Both the call and its paired output are
// renamed together, matched by pairing order (the Nth call with a given
// call_id pairs with the Nth output carrying that call_id).
func DedupToolIDs(items []ResponsesItem) []ResponsesItem {
	out := make([]ResponsesItem, len(items))
	copy(out, items)

	callOccurrence := make(map[string]int)   // call_id -> count of calls seen so far
	outputOccurrence := make(map[string]int) // call_id -> count of outputs seen so far

	for i, it := range out {
		switch it.Type {
		case ItemFunctionCall:
			n := callOccurrence[it.CallID]
			callOccurrence[it.CallID] = n + 1
			if n > 0 {
				out[i].CallID = renamed(it.CallID, n+1)
			}
		case ItemFunctionCallOutput:
			n := outputOccurrence[it.CallID]
			outputOccurrence[it.CallID] = n + 1
			if n > 0 {
				out[i].CallID = renamed(it.CallID, n+1)
			}
		}
	}
	return out
}

func renamed(callID string, occurrence int) string {
	return fmt.Sprintf("%s-dup%d", callID, occurrence)
}
