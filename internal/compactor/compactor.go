// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compactor shortens cross-tool conversation history to a fixed
// token budget for injection into another tool's prompt. The budget is a
// hard floor: unlike every other token-aware component in the gateway, it
// never grows to accommodate a caller's larger max_tokens.
package compactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/tokens"
)

// TargetTokens is the fixed budget every compaction aims for, regardless
// of any caller-supplied max_tokens (SPEC_FULL.md §9).
const TargetTokens = 30_000

const summarizePrompt = "Summarize the conversation below for a different AI assistant that is about to continue the work. Preserve concrete decisions, file paths, and open questions. Target roughly %d tokens.\n\n%s"

// Compactor produces a budget-bounded text rendering of a session's
// history, calling an adapter to summarize only when the raw rendering
// would exceed the budget.
type Compactor struct {
	adapters   *adapter.Registry
	adapterKey string
	model      string
}

// New constructs a Compactor that summarizes via the (adapterKey, model)
// pair resolved from registry when compaction is actually needed.
func New(registry *adapter.Registry, adapterKey, model string) *Compactor {
	return &Compactor{adapters: registry, adapterKey: adapterKey, model: model}
}

// CompactForCLI renders history for injection into another CLI tool's
// task, summarizing it down to TargetTokens when the raw rendering
// exceeds that floor. Returns "" if history is empty: nothing to inject.
func (c *Compactor) CompactForCLI(ctx context.Context, history datatypes.History) (string, error) {
	raw := render(history)
	if raw == "" {
		return "", nil
	}
	if tokens.Estimate(raw) <= TargetTokens {
		return raw, nil
	}

	ad, err := c.adapters.GetAdapter(c.adapterKey, c.model)
	if err != nil {
		return "", errs.Wrap(errs.BackendUnavailable, err, "resolve compactor adapter")
	}

	prompt := fmt.Sprintf(summarizePrompt, TargetTokens, raw)
	result, err := ad.Generate(ctx, prompt, nil, adapter.CallContext{Tool: "compactor"}, nil)
	if err != nil {
		return "", errs.Wrap(errs.BackendUnavailable, err, "compact history")
	}
	return result.Content, nil
}

func render(h datatypes.History) string {
	var b strings.Builder
	switch h.Format {
	case datatypes.FormatResponses:
		for _, item := range h.Responses {
			switch item.Type {
			case datatypes.ItemMessage:
				b.WriteString(string(item.Role))
				b.WriteString(": ")
				for _, part := range item.Content {
					b.WriteString(part.Text)
				}
				b.WriteString("\n")
			case datatypes.ItemFunctionCall:
				fmt.Fprintf(&b, "tool call %s(%s)\n", item.Name, item.Arguments)
			case datatypes.ItemFunctionCallOutput:
				fmt.Fprintf(&b, "tool result: %s\n", item.Output)
			}
		}
	default:
		for _, m := range h.Chat {
			b.WriteString(string(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}
