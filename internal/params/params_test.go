// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/params"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

func tool(ps ...toolregistry.ParameterInfo) toolregistry.ToolMetadata {
	return toolregistry.ToolMetadata{ID: "chat_with_Test", Model: "test", Parameters: ps}
}

func TestValidate_AppliesDefaultFactoryFreshPerCall(t *testing.T) {
	tl := tool(toolregistry.ParameterInfo{
		Name:           "tags",
		Route:          toolregistry.RouteAdapter,
		DefaultFactory: func() interface{} { return []string{} },
	})

	r1, err := params.Validate(map[string]interface{}{}, tl, adapter.Capabilities{}, params.LenientMode)
	require.NoError(t, err)
	tags := r1.Adapter["tags"].([]string)
	tags = append(tags, "mutated")
	assert.Len(t, tags, 1)

	r2, err := params.Validate(map[string]interface{}{}, tl, adapter.Capabilities{}, params.LenientMode)
	require.NoError(t, err)
	assert.Empty(t, r2.Adapter["tags"].([]string))
}

func TestValidate_RejectsUnknownParameterInStrictMode(t *testing.T) {
	tl := tool()
	_, err := params.Validate(map[string]interface{}{"bogus": 1}, tl, adapter.Capabilities{}, params.StrictMode)
	require.Error(t, err)
}

func TestValidate_DropsUnknownParameterInLenientMode(t *testing.T) {
	tl := tool()
	_, err := params.Validate(map[string]interface{}{"bogus": 1}, tl, adapter.Capabilities{}, params.LenientMode)
	require.NoError(t, err)
}

func TestValidate_RequiresCapabilityRejectsUnsupported(t *testing.T) {
	tl := tool(toolregistry.ParameterInfo{
		Name:               "reasoning_effort",
		Route:              toolregistry.RouteAdapter,
		RequiresCapability: func(c adapter.Capabilities) bool { return c.SupportsReasoningEffort },
	})

	_, err := params.Validate(map[string]interface{}{"reasoning_effort": "high"}, tl, adapter.Capabilities{SupportsReasoningEffort: false}, params.LenientMode)
	require.Error(t, err)

	_, err = params.Validate(map[string]interface{}{"reasoning_effort": "high"}, tl, adapter.Capabilities{SupportsReasoningEffort: true}, params.LenientMode)
	require.NoError(t, err)
}

func TestValidate_MissingRequiredParameterFails(t *testing.T) {
	tl := tool(toolregistry.ParameterInfo{Name: "task", Route: toolregistry.RoutePrompt, Required: true})
	_, err := params.Validate(map[string]interface{}{}, tl, adapter.Capabilities{}, params.LenientMode)
	require.Error(t, err)
}

func TestValidate_RoutesPromptValuesByPosition(t *testing.T) {
	tl := tool(
		toolregistry.ParameterInfo{Name: "second", Route: toolregistry.RoutePrompt, Position: 1},
		toolregistry.ParameterInfo{Name: "first", Route: toolregistry.RoutePrompt, Position: 0},
	)
	r, err := params.Validate(map[string]interface{}{"first": "a", "second": "b"}, tl, adapter.Capabilities{}, params.LenientMode)
	require.NoError(t, err)
	require.Len(t, r.Prompt, 2)
	assert.Equal(t, "first", r.Prompt[0].Name)
	assert.Equal(t, "second", r.Prompt[1].Name)
}

func TestValidate_ConcatenatesVectorStorePathsInDeclarationOrder(t *testing.T) {
	tl := tool(
		toolregistry.ParameterInfo{Name: "paths_a", Route: toolregistry.RouteVectorStore},
		toolregistry.ParameterInfo{Name: "paths_b", Route: toolregistry.RouteVectorStore},
	)
	r, err := params.Validate(map[string]interface{}{
		"paths_a": []string{"a.go"},
		"paths_b": []string{"b.go"},
	}, tl, adapter.Capabilities{}, params.LenientMode)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, r.VectorStorePaths)
}

func TestValidate_SkipsNullValues(t *testing.T) {
	tl := tool(toolregistry.ParameterInfo{Name: "opt", Route: toolregistry.RouteAdapter})
	r, err := params.Validate(map[string]interface{}{"opt": nil}, tl, adapter.Capabilities{}, params.LenientMode)
	require.NoError(t, err)
	_, present := r.Adapter["opt"]
	assert.False(t, present)
}
