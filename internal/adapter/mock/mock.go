// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mock implements a deterministic adapter for end-to-end testing
// without network I/O: it echoes its inputs as a JSON record.
package mock

import (
	"context"
	"encoding/json"

	"github.com/lukacf/forcegate/internal/adapter"
)

// Adapter echoes a deterministic JSON record of everything it was called
// with, so tests can assert on routing without a live model.
type Adapter struct {
	model string
	caps  adapter.Capabilities
}

// New constructs a mock adapter for model.
func New(model string) (*Adapter, error) {
	return &Adapter{
		model: model,
		caps: adapter.Capabilities{
			SupportsTools:            true,
			SupportsStreaming:        false,
			SupportsTemperature:      true,
			SupportsStructuredOutput: true,
			SupportsReasoningEffort:  false,
			ParallelFunctionCalls:    -1,
			MaxContextWindow:         128_000,
		},
	}, nil
}

func (a *Adapter) ModelName() string { return a.model }

func (a *Adapter) DisplayName() string { return "Mock (" + a.model + ")" }

func (a *Adapter) Capabilities() adapter.Capabilities { return a.caps }

type echoRecord struct {
	Model          string                 `json:"model"`
	Prompt         string                 `json:"prompt"`
	SessionID      string                 `json:"session_id"`
	VectorStoreIDs []string               `json:"vector_store_ids"`
	Params         map[string]interface{} `json:"params"`
}

func (a *Adapter) Generate(ctx context.Context, prompt string, params map[string]interface{}, callCtx adapter.CallContext, dispatcher adapter.Dispatcher) (adapter.Result, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Result{}, err
	}
	rec := echoRecord{
		Model:          a.model,
		Prompt:         prompt,
		SessionID:      callCtx.SessionID,
		VectorStoreIDs: callCtx.VectorStoreIDs,
		Params:         params,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{Content: string(raw)}, nil
}
