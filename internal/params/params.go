// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package params validates a raw parameter mapping against a tool's
// declared ParameterInfo set and routes the validated values to the
// components that consume them.
package params

import (
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

var validate = validator.New()

// Routed is the partitioned output of Validate: the destination each
// validated parameter value is delivered to.
type Routed struct {
	// Prompt holds prompt-routed values ordered by declared Position.
	Prompt []PromptValue
	// Adapter is forwarded as kwargs to adapter.Generate.
	Adapter map[string]interface{}
	// VectorStorePaths is concatenated, in declaration order, from every
	// vector_store-routed parameter.
	VectorStorePaths []string
	// VectorStoreIDs is merged into the call context's vector store ids.
	VectorStoreIDs []string
	// SessionID is the session-routed session_id, if provided.
	SessionID string
	// StructuredOutput is the opaque schema contract, if provided.
	StructuredOutput interface{}
}

// PromptValue is one prompt-routed parameter, ordered for template filling.
type PromptValue struct {
	Name     string
	Value    interface{}
	Position int
}

// Strict controls whether unknown parameters are rejected (true) or merely
// logged and dropped (false).
type Strict bool

const (
	StrictMode  Strict = true
	LenientMode Strict = false
)

// Validate checks raw against tool's declared parameters, applies defaults,
// rejects parameters whose capability requirement caps does not meet, and
// routes each value. caps is the adapter's
// capability record (the zero value if the tool has no backing adapter).
func Validate(raw map[string]interface{}, tool toolregistry.ToolMetadata, caps adapter.Capabilities, strict Strict) (Routed, error) {
	known := make(map[string]toolregistry.ParameterInfo, len(tool.Parameters))
	for _, p := range tool.Parameters {
		known[p.Name] = p
	}

	for name := range raw {
		if _, ok := known[name]; !ok {
			if strict {
				return Routed{}, errs.New(errs.InvalidParameter, "unknown parameter %q for tool %q", name, tool.ID)
			}
			slog.Warn("dropping unknown parameter", "tool", tool.ID, "parameter", name)
		}
	}

	routed := Routed{Adapter: make(map[string]interface{})}
	var promptValues []PromptValue

	for _, p := range tool.Parameters {
		value, present := raw[p.Name]

		if !present {
			if p.DefaultFactory != nil {
				value = p.DefaultFactory()
				present = true
			} else if p.Default != nil {
				value = p.Default
				present = true
			}
		}

		if !present {
			if p.Required {
				return Routed{}, errs.New(errs.InvalidParameter, "missing required parameter %q for tool %q", p.Name, tool.ID)
			}
			continue
		}

		if value == nil {
			continue
		}

		if p.RequiresCapability != nil && !p.RequiresCapability(caps) {
			return Routed{}, errs.New(errs.UnsupportedCapability, "parameter %q is not supported by model %q", p.Name, tool.Model)
		}

		if err := validateValue(p, value); err != nil {
			return Routed{}, err
		}

		switch p.Route {
		case toolregistry.RoutePrompt:
			promptValues = append(promptValues, PromptValue{Name: p.Name, Value: value, Position: p.Position})
		case toolregistry.RouteAdapter:
			routed.Adapter[p.Name] = value
		case toolregistry.RouteVectorStore:
			routed.VectorStorePaths = append(routed.VectorStorePaths, toStringSlice(value)...)
		case toolregistry.RouteVectorStoreIDs:
			routed.VectorStoreIDs = append(routed.VectorStoreIDs, toStringSlice(value)...)
		case toolregistry.RouteSession:
			if s, ok := value.(string); ok {
				routed.SessionID = s
			}
		case toolregistry.RouteStructuredOutput:
			routed.StructuredOutput = value
		}
	}

	sort.SliceStable(promptValues, func(i, j int) bool { return promptValues[i].Position < promptValues[j].Position })
	routed.Prompt = promptValues

	return routed, nil
}

func validateValue(p toolregistry.ParameterInfo, value interface{}) error {
	if p.Type == "" {
		return nil
	}
	if err := validate.Var(value, p.Type); err != nil {
		return errs.Wrap(errs.InvalidParameter, err, "parameter %q failed validation", p.Name)
	}
	return nil
}

func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
