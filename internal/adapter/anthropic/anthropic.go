// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package anthropic implements the Claude-family adapter over
// github.com/tmc/langchaingo's anthropic LLM binding.
package anthropic

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/convo"
	"github.com/lukacf/forcegate/internal/adapter/llmsloop"
	"github.com/lukacf/forcegate/internal/errs"
)

// Adapter talks to Claude models.
type Adapter struct {
	model *anthropic.LLM
	name  string
	store convo.Loader
}

// New constructs an adapter for model using apiKey.
func New(model, apiKey string, store convo.Loader) (*Adapter, error) {
	if apiKey == "" {
		return nil, errs.New(errs.InvalidParameter, "anthropic adapter requires an api key")
	}
	llm, err := anthropic.New(anthropic.WithModel(model), anthropic.WithToken(apiKey))
	if err != nil {
		return nil, errs.Wrap(errs.BackendUnavailable, err, "construct anthropic client")
	}
	return &Adapter{model: llm, name: model, store: store}, nil
}

func (a *Adapter) ModelName() string { return a.name }

func (a *Adapter) DisplayName() string { return "Claude (" + a.name + ")" }

func (a *Adapter) Capabilities() adapter.Capabilities {
	caps := adapter.Capabilities{
		SupportsTools:            true,
		SupportsStreaming:        true,
		SupportsTemperature:      true,
		SupportsStructuredOutput: true,
		SupportsVision:           true,
		ParallelFunctionCalls:    -1,
		MaxContextWindow:         200_000,
		MaxOutputTokens:          8_192,
	}
	if strings.Contains(a.name, "opus-4") || strings.Contains(a.name, "sonnet-4") {
		caps.SupportsReasoningEffort = false
		caps.MaxOutputTokens = 64_000
	}
	return caps
}

// Generate runs the tool-call loop via llmsloop.
func (a *Adapter) Generate(ctx context.Context, prompt string, params map[string]interface{}, callCtx adapter.CallContext, dispatcher adapter.Dispatcher) (adapter.Result, error) {
	return llmsloop.Run(ctx, a.model, a.store, prompt, params, callCtx, dispatcher, a.Capabilities())
}
