// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cliagent

import (
	"github.com/lukacf/forcegate/internal/errs"
)

// modelToCLI maps a chat model name to the CLI that can drive it
// interactively. Models with no entry here have no CLI surface (they are
// API-only, reachable through chat_with_*/consult_with instead).
var modelToCLI = map[string]string{
	"claude-opus-4-5":   "claude",
	"claude-sonnet-4-5": "claude",
	"claude-haiku-4-5":  "claude",
	"gemini-3-pro":      "gemini",
	"gemini-3-flash":    "gemini",
	"gpt-5.2":           "codex",
	"gpt-5.2-mini":      "codex",
	"o4-mini":           "codex",
}

// ResolveModelToCLI maps a model name to the CLI executable key, raising
// not-found if model has no registered CLI mapping (API-only models are
// reachable through chat_with_*/consult_with instead, never through this
// path).
func ResolveModelToCLI(model string) (string, error) {
	cli, ok := modelToCLI[model]
	if !ok {
		return "", errs.New(errs.NotFound, "model %q is not registered for CLI agent use", model)
	}
	return cli, nil
}
