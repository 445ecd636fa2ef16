// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor is the orchestration core: it validates and routes a
// tool call's parameters, builds file context, provisions a vector store
// from overflow, assembles the prompt, and invokes the resolved adapter
// under a wall-clock deadline.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/lukacf/forcegate/internal/adapter"
	forcectx "github.com/lukacf/forcegate/internal/context"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/params"
	"github.com/lukacf/forcegate/internal/prompt"
	"github.com/lukacf/forcegate/internal/toolregistry"
	"github.com/lukacf/forcegate/internal/vectorstore"
)

// inlineBudgetFraction is the share of a model's context window reserved
// for inline file content (SPEC_FULL.md §4.4).
const inlineBudgetFraction = 0.85

// Result is what a single call returns to its caller.
type Result struct {
	Content    string
	ResponseID string
	Citations  []adapter.Citation
}

// Executor wires components C through I into the single orchestration path
// every adapter-backed tool call follows.
type Executor struct {
	adapters       *adapter.Registry
	contextBuilder *forcectx.Builder
	vectorstore    *vectorstore.Manager
	dispatcher     adapter.Dispatcher
	strict         params.Strict
	now            func() time.Time
}

// New constructs an Executor. dispatcher may be nil if no tool declares
// itself available for model-initiated tool calls.
func New(adapters *adapter.Registry, contextBuilder *forcectx.Builder, vs *vectorstore.Manager, dispatcher adapter.Dispatcher, strict params.Strict) *Executor {
	return &Executor{
		adapters:       adapters,
		contextBuilder: contextBuilder,
		vectorstore:    vs,
		dispatcher:     dispatcher,
		strict:         strict,
		now:            time.Now,
	}
}

// Execute runs one tool call to completion.
func (e *Executor) Execute(ctx context.Context, tool toolregistry.ToolMetadata, rawParams map[string]interface{}, callCtx adapter.CallContext, projectRoot string) (Result, error) {
	sm := newStateMachine()
	state := StateAccepted

	var caps adapter.Capabilities
	var ad adapter.Adapter
	if tool.LocalService == nil {
		var err error
		ad, err = e.adapters.GetAdapter(tool.AdapterKey, tool.Model)
		if err != nil {
			return Result{}, err
		}
		caps = ad.Capabilities()
	}

	routed, err := params.Validate(rawParams, tool, caps, e.strict)
	if err != nil {
		state = transition(sm, state, StateFailed)
		return Result{}, err
	}
	state = transition(sm, state, StateValidated)
	state = transition(sm, state, StateRouted)

	if tool.LocalService != nil {
		flat := flatten(routed, callCtx)
		out, err := tool.LocalService.Invoke(ctx, flat)
		if err != nil {
			transition(sm, state, StateFailed)
			return Result{}, err
		}
		transition(sm, state, StateSucceeded)
		return Result{Content: toString(out)}, nil
	}

	ctxResult, err := e.contextBuilder.BuildContext(ctx, forcectx.Params{
		Root:         projectRoot,
		SessionID:    callCtx.SessionID,
		Paths:        routed.VectorStorePaths,
		BudgetTokens: inlineBudget(caps.MaxContextWindow),
	})
	if err != nil {
		transition(sm, state, StateFailed)
		return Result{}, err
	}
	state = transition(sm, state, StateContextBuilt)

	vsIDs := append([]string(nil), routed.VectorStoreIDs...)
	var ephemeralVS string
	if len(ctxResult.Overflow) > 0 {
		files, err := loadFiles(ctxResult.Overflow)
		if err != nil {
			transition(sm, state, StateFailed)
			return Result{}, err
		}
		vsID, err := e.vectorstore.Create(ctx, files, callCtx.SessionID)
		if err != nil {
			transition(sm, state, StateFailed)
			return Result{}, err
		}
		if vsID != "" {
			vsIDs = append(vsIDs, vsID)
			if callCtx.SessionID == "" {
				ephemeralVS = vsID
			}
		}
		state = transition(sm, state, StateVSCreated)
	}
	if ephemeralVS != "" {
		defer func() {
			if err := e.vectorstore.Delete(context.WithoutCancel(ctx), ephemeralVS); err != nil {
				slog.Warn("failed to delete ephemeral vector store", "vs_id", ephemeralVS, "error", err)
			}
		}()
	}

	finalCallCtx := callCtx
	finalCallCtx.VectorStoreIDs = vsIDs

	adapter.ApplyReasoningEffort(routed.Adapter, caps)
	promptText := prompt.Build(routed.Prompt, ctxResult)

	deadline := tool.Timeout
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	callTimeoutCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	state = transition(sm, state, StateAdapterCalled)
	result, err := ad.Generate(callTimeoutCtx, promptText, routed.Adapter, finalCallCtx, e.dispatcher)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			transition(sm, state, StateCancelled)
			return Result{}, err
		}
		transition(sm, state, StateFailed)
		return Result{}, err
	}
	transition(sm, state, StateSucceeded)

	return Result{Content: result.Content, ResponseID: result.ResponseID, Citations: result.Citations}, nil
}

// SafeExecute wraps Execute for transport layers where the host has already
// abandoned the call on cancellation: a raw cancellation becomes an empty
// success (no caller is waiting for the error) but is still logged.
func (e *Executor) SafeExecute(ctx context.Context, tool toolregistry.ToolMetadata, rawParams map[string]interface{}, callCtx adapter.CallContext, projectRoot string) (Result, error) {
	result, err := e.Execute(ctx, tool, rawParams, callCtx, projectRoot)
	if err != nil && (errors.Is(err, context.Canceled) || errs.KindOf(err) == errs.Cancelled) {
		slog.Info("call cancelled, returning empty success to transport", "tool", tool.ID, "session", callCtx.SessionID)
		return Result{}, nil
	}
	return result, err
}

func transition(sm *stateMachine, from, to CallState) CallState {
	if !sm.canTransition(from, to) {
		slog.Warn("unexpected call state transition", "from", from, "to", to)
	}
	return to
}

func inlineBudget(contextWindow int) int {
	if contextWindow <= 0 {
		contextWindow = 128_000
	}
	reserve := 2_000
	budget := int(float64(contextWindow)*inlineBudgetFraction) - reserve
	if budget < 0 {
		budget = 0
	}
	return budget
}

func loadFiles(paths []string) ([]vectorstore.File, error) {
	files := make([]vectorstore.File, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("skipping unreadable overflow file", "path", p, "error", err)
			continue
		}
		files = append(files, vectorstore.File{Path: p, Content: string(content)})
	}
	return files, nil
}

func flatten(r params.Routed, callCtx adapter.CallContext) map[string]interface{} {
	out := make(map[string]interface{}, len(r.Adapter)+len(r.Prompt)+3)
	for k, v := range r.Adapter {
		out[k] = v
	}
	for _, pv := range r.Prompt {
		out[pv.Name] = pv.Value
	}
	if r.SessionID != "" {
		out["session_id"] = r.SessionID
	}
	if len(r.VectorStorePaths) > 0 {
		out["paths"] = r.VectorStorePaths
	}
	if callCtx.Project != "" {
		out["project_dir"] = callCtx.Project
	}
	return out
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
