// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package adapter defines the uniform contract every provider family
// implements, and the memoized registry the tool executor uses to acquire
// one.
package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
)

// Capabilities is the frozen feature record an adapter exposes; it governs
// parameter admissibility, tool-set composition, request shaping, and
// timeout/async policy (SPEC_FULL.md §3.4).
type Capabilities struct {
	NativeVectorStoreProvider string
	SupportsTools             bool
	SupportsStreaming         bool
	SupportsTemperature       bool
	SupportsStructuredOutput  bool
	SupportsVision            bool
	SupportsWebSearch         bool
	SupportsLiveSearch        bool
	SupportsReasoningEffort   bool
	ParallelFunctionCalls     int // 0 = none, -1 = unlimited, >0 = bound
	MaxContextWindow          int
	MaxOutputTokens           int
	ForceBackground           bool
	DefaultReasoningEffort    string
}

// CallContext carries the ambient identity of one tool invocation through
// to the adapter and its tool dispatcher.
type CallContext struct {
	Project        string
	Tool           string
	SessionID      string
	VectorStoreIDs []string
}

// Key identifies session state for ctx.
func (c CallContext) Key() (project, tool, sessionID string) {
	return c.Project, c.Tool, c.SessionID
}

// Citation is a source reference an adapter's response may carry.
type Citation struct {
	Source string
	Text   string
}

// Result is what Generate returns on success.
type Result struct {
	Content    string
	ResponseID string
	Citations  []Citation
	Usage      *datatypes.TokenUsage
}

// ToolDeclaration is what an adapter advertises to the provider for a given
// turn; Dispatcher decides which declarations apply based on capabilities.
type ToolDeclaration struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// Dispatcher lets an adapter declare and execute tools mid-turn without
// depending on the executor package (which depends on adapter), avoiding an
// import cycle.
type Dispatcher interface {
	GetToolDeclarations(caps Capabilities, disableHistorySearch bool) []ToolDeclaration
	Execute(ctx context.Context, toolName string, args map[string]interface{}, callCtx CallContext) (string, error)
}

// Adapter is the uniform contract every provider family implements.
type Adapter interface {
	ModelName() string
	DisplayName() string
	Capabilities() Capabilities
	Generate(ctx context.Context, prompt string, params map[string]interface{}, callCtx CallContext, dispatcher Dispatcher) (Result, error)
}

// Factory constructs an Adapter for a given model name.
type Factory func(model string) (Adapter, error)

// Registry memoizes adapters by (key, model).
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	cache     map[string]Adapter
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		cache:     make(map[string]Adapter),
	}
}

// RegisterFactory associates an adapter-key (e.g. "openai", "anthropic",
// "google", "xai", "mock") with the factory that builds per-model adapters
// for it.
func (r *Registry) RegisterFactory(key string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

// GetAdapter returns a memoized adapter for (key, model), constructing it on
// first use.
func (r *Registry) GetAdapter(key, model string) (Adapter, error) {
	cacheKey := key + "\x00" + model

	r.mu.Lock()
	if a, ok := r.cache[cacheKey]; ok {
		r.mu.Unlock()
		return a, nil
	}
	factory, ok := r.factories[key]
	r.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.NotFound, "no adapter registered for key %q", key)
	}

	a, err := factory(model)
	if err != nil {
		return nil, errs.Wrap(errs.BackendUnavailable, err, "construct adapter %s/%s", key, model)
	}

	r.mu.Lock()
	r.cache[cacheKey] = a
	r.mu.Unlock()
	return a, nil
}

// ApplyReasoningEffort applies cap's DefaultReasoningEffort to params only
// when the caller did not specify one explicitly — explicit values are
// never upgraded or downgraded (SPEC_FULL.md §4.6).
func ApplyReasoningEffort(params map[string]interface{}, caps Capabilities) {
	if !caps.SupportsReasoningEffort || caps.DefaultReasoningEffort == "" {
		return
	}
	if _, explicit := params["reasoning_effort"]; explicit {
		return
	}
	params["reasoning_effort"] = caps.DefaultReasoningEffort
}

// String renders a CallContext for logging.
func (c CallContext) String() string {
	return fmt.Sprintf("project=%s tool=%s session=%s", c.Project, c.Tool, c.SessionID)
}
