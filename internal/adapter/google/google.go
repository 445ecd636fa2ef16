// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package google implements the Gemini-family adapter over
// github.com/tmc/langchaingo's googleai LLM binding.
package google

import (
	"context"

	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/convo"
	"github.com/lukacf/forcegate/internal/adapter/llmsloop"
	"github.com/lukacf/forcegate/internal/errs"
)

// Adapter talks to Gemini models.
type Adapter struct {
	model *googleai.GoogleAI
	name  string
	store convo.Loader
}

// New constructs an adapter for model using apiKey.
func New(ctx context.Context, model, apiKey string, store convo.Loader) (*Adapter, error) {
	if apiKey == "" {
		return nil, errs.New(errs.InvalidParameter, "google adapter requires an api key")
	}
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, errs.Wrap(errs.BackendUnavailable, err, "construct google client")
	}
	return &Adapter{model: llm, name: model, store: store}, nil
}

func (a *Adapter) ModelName() string { return a.name }

func (a *Adapter) DisplayName() string { return "Gemini (" + a.name + ")" }

func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		SupportsTools:            true,
		SupportsStreaming:        true,
		SupportsTemperature:      true,
		SupportsStructuredOutput: true,
		SupportsVision:           true,
		SupportsWebSearch:        true,
		SupportsLiveSearch:       true,
		ParallelFunctionCalls:    -1,
		MaxContextWindow:         1_000_000,
		MaxOutputTokens:          8_192,
	}
}

// Generate runs the tool-call loop via llmsloop.
func (a *Adapter) Generate(ctx context.Context, prompt string, params map[string]interface{}, callCtx adapter.CallContext, dispatcher adapter.Dispatcher) (adapter.Result, error) {
	return llmsloop.Run(ctx, a.model, a.store, prompt, params, callCtx, dispatcher, a.Capabilities())
}
