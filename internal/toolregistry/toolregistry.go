// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package toolregistry turns provider-declared tool blueprints into the
// validated, named ToolMetadata the executor dispatches against.
package toolregistry

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/errs"
)

// Route is where a validated parameter value is delivered.
type Route string

const (
	RoutePrompt           Route = "prompt"
	RouteAdapter          Route = "adapter"
	RouteVectorStore      Route = "vector_store"
	RouteVectorStoreIDs   Route = "vector_store_ids"
	RouteSession          Route = "session"
	RouteStructuredOutput Route = "structured_output"
)

func (r Route) valid() bool {
	switch r {
	case RoutePrompt, RouteAdapter, RouteVectorStore, RouteVectorStoreIDs, RouteSession, RouteStructuredOutput:
		return true
	}
	return false
}

// ParameterInfo describes one tool parameter and how it is validated,
// defaulted, and routed.
type ParameterInfo struct {
	Name               string
	Type               string
	Route              Route
	Position           int // meaningful only when Route == RoutePrompt
	Default            interface{}
	DefaultFactory     func() interface{}
	Required           bool
	Description        string
	RequiresCapability func(adapter.Capabilities) bool
}

// ToolType distinguishes prompt-shaping conventions and naming prefix.
type ToolType string

const (
	ToolTypeChat     ToolType = "chat"
	ToolTypeResearch ToolType = "research"
)

// LocalService, when non-nil on a blueprint, identifies a utility tool that
// bypasses the adapter pipeline entirely (list sessions, count tokens, the
// CLI agent tool, etc).
type LocalService interface {
	Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ToolBlueprint is what a provider registers at startup.
type ToolBlueprint struct {
	ModelName          string
	AdapterKey         string
	Model              string
	Description        string
	ToolType           ToolType
	Timeout            time.Duration
	ContextWindow      int
	Parameters         []ParameterInfo
	LocalService       LocalService
	RequiresCapability func(adapter.Capabilities) bool
}

// ToolMetadata is the validated, named record the executor dispatches
// against.
type ToolMetadata struct {
	ID            string
	Name          string
	Description   string
	ToolType      ToolType
	AdapterKey    string
	ModelName     string
	Model         string
	Timeout       time.Duration
	ContextWindow int
	Parameters    []ParameterInfo
	LocalService  LocalService
}

// Registry holds every registered tool, keyed by its synthesized ID.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolMetadata
	order []string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolMetadata)}
}

// Register validates bp and adds it under its synthesized identifier,
// skipping (not erroring) if a tool already exists for the same ModelName.
func (r *Registry) Register(bp ToolBlueprint) error {
	if err := validateBlueprint(bp); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tools {
		if existing.ModelName == bp.ModelName {
			return nil
		}
	}

	id := synthesizeID(bp.ToolType, bp.ModelName)
	r.tools[id] = ToolMetadata{
		ID:            id,
		Name:          id,
		Description:   bp.Description,
		ToolType:      bp.ToolType,
		AdapterKey:    bp.AdapterKey,
		ModelName:     bp.ModelName,
		Model:         bp.Model,
		Timeout:       bp.Timeout,
		ContextWindow: bp.ContextWindow,
		Parameters:    bp.Parameters,
		LocalService:  bp.LocalService,
	}
	r.order = append(r.order, id)
	return nil
}

// RegisterFixed adds a tool under an explicit, caller-chosen ID rather than
// a synthesized one. Used for the fixed-name utility tools (work_with,
// consult_with, list_sessions, and friends) that have no per-model identity.
func (r *Registry) RegisterFixed(id string, md ToolMetadata) error {
	if id == "" {
		return errs.New(errs.InvalidParameter, "fixed tool registration requires an id")
	}
	md.ID = id
	if md.Name == "" {
		md.Name = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[id]; exists {
		return nil
	}
	r.tools[id] = md
	r.order = append(r.order, id)
	return nil
}

// ListTools returns every registered tool in registration order.
func (r *Registry) ListTools() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolMetadata, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id])
	}
	return out
}

// GetTool looks up a tool by its synthesized identifier.
func (r *Registry) GetTool(id string) (ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

func validateBlueprint(bp ToolBlueprint) error {
	if bp.ModelName == "" {
		return errs.New(errs.InvalidParameter, "tool blueprint requires a model name")
	}
	if bp.AdapterKey == "" && bp.LocalService == nil {
		return errs.New(errs.InvalidParameter, "tool blueprint %q requires an adapter key or a local service", bp.ModelName)
	}
	if bp.Description == "" {
		return errs.New(errs.InvalidParameter, "tool blueprint %q requires a description", bp.ModelName)
	}
	if bp.ToolType != ToolTypeChat && bp.ToolType != ToolTypeResearch {
		return errs.New(errs.InvalidParameter, "tool blueprint %q has invalid tool_type %q", bp.ModelName, bp.ToolType)
	}
	if bp.Timeout <= 0 {
		return errs.New(errs.InvalidParameter, "tool blueprint %q requires a positive timeout", bp.ModelName)
	}
	if bp.ContextWindow <= 0 {
		return errs.New(errs.InvalidParameter, "tool blueprint %q requires a positive context window", bp.ModelName)
	}
	for _, p := range bp.Parameters {
		if !p.Route.valid() {
			return errs.New(errs.InvalidParameter, "tool blueprint %q parameter %q has invalid route %q", bp.ModelName, p.Name, p.Route)
		}
	}
	return nil
}

var segmentRE = regexp.MustCompile(`[A-Za-z0-9]+`)

// synthesizeID produces a stable valid identifier for modelName, prefixed
// by the tool-type naming convention, title-casing each segment while
// preserving runs that are already all-uppercase (e.g. acronyms).
func synthesizeID(toolType ToolType, modelName string) string {
	prefix := "chat_with_"
	if toolType == ToolTypeResearch {
		prefix = "research_with_"
	}

	segments := segmentRE.FindAllString(modelName, -1)
	var b strings.Builder
	for _, seg := range segments {
		if seg == strings.ToUpper(seg) && len(seg) > 1 {
			b.WriteString(seg)
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]))
		if len(seg) > 1 {
			b.WriteString(strings.ToLower(seg[1:]))
		}
	}
	return prefix + b.String()
}
