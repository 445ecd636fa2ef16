// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt assembles the final XML-tagged prompt string from a
// tool's prompt-routed parameters and the context builder's output.
package prompt

import (
	"fmt"
	"html"
	"strings"

	"github.com/lukacf/forcegate/internal/context"
	"github.com/lukacf/forcegate/internal/params"
)

// Defaults for the named slots of the base template when the tool's
// prompt-routed parameters don't supply them explicitly.
const (
	slotInstructions = "instructions"
	slotOutputFormat = "output_format"
)

// overflowNotice is appended when some gathered files did not fit the
// inline budget and were routed to a vector store instead.
const overflowNotice = "Additional file context is accessible via the file-search tool."

// Build renders the final prompt string for one tool call: the fixed
// three-slot template, any extra prompt-routed parameters as trailing
// <name>value</name> blocks, and the inlined file context.
func Build(promptValues []params.PromptValue, ctxResult context.Result) string {
	slots := map[string]string{slotInstructions: "", slotOutputFormat: ""}
	var extra []params.PromptValue

	for _, pv := range promptValues {
		if _, known := slots[pv.Name]; known {
			slots[pv.Name] = fmt.Sprintf("%v", pv.Value)
			continue
		}
		extra = append(extra, pv)
	}

	var b strings.Builder
	b.WriteString("<instructions>")
	b.WriteString(html.EscapeString(slots[slotInstructions]))
	b.WriteString("</instructions>\n")
	b.WriteString("<output_format>")
	b.WriteString(html.EscapeString(slots[slotOutputFormat]))
	b.WriteString("</output_format>\n")
	b.WriteString("<file_context>")
	writeFileContext(&b, ctxResult)
	b.WriteString("</file_context>")

	for _, pv := range extra {
		b.WriteString(fmt.Sprintf("\n<%s>%s</%s>", pv.Name, html.EscapeString(fmt.Sprintf("%v", pv.Value)), pv.Name))
	}

	return b.String()
}

func writeFileContext(b *strings.Builder, ctxResult context.Result) {
	for i, f := range ctxResult.Inline {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf(`<file path="%s">`, html.EscapeString(f.Path)))
		b.WriteString(html.EscapeString(f.Content))
		b.WriteString("</file>")
	}
	if len(ctxResult.Overflow) > 0 {
		if len(ctxResult.Inline) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(overflowNotice)
	}
}
