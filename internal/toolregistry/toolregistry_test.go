// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package toolregistry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/toolregistry"
)

func validBlueprint(modelName string, tt toolregistry.ToolType) toolregistry.ToolBlueprint {
	return toolregistry.ToolBlueprint{
		ModelName:     modelName,
		AdapterKey:    "openai",
		Model:         modelName,
		Description:   "test tool",
		ToolType:      tt,
		Timeout:       30 * time.Second,
		ContextWindow: 128_000,
	}
}

func TestRegister_SynthesizesChatID(t *testing.T) {
	r := toolregistry.NewRegistry()
	require.NoError(t, r.Register(validBlueprint("gpt-4o", toolregistry.ToolTypeChat)))

	tools := r.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "chat_with_Gpt4o", tools[0].ID)
}

func TestRegister_SynthesizesResearchIDPreservingAcronym(t *testing.T) {
	r := toolregistry.NewRegistry()
	require.NoError(t, r.Register(validBlueprint("GPT-5", toolregistry.ToolTypeResearch)))

	tools := r.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "research_with_GPT5", tools[0].ID)
}

func TestRegister_DedupesByModelName(t *testing.T) {
	r := toolregistry.NewRegistry()
	require.NoError(t, r.Register(validBlueprint("gpt-4o", toolregistry.ToolTypeChat)))
	require.NoError(t, r.Register(validBlueprint("gpt-4o", toolregistry.ToolTypeChat)))
	assert.Len(t, r.ListTools(), 1)
}

func TestRegister_RejectsInvalidToolType(t *testing.T) {
	r := toolregistry.NewRegistry()
	bp := validBlueprint("gpt-4o", "bogus")
	require.Error(t, r.Register(bp))
}

func TestRegister_RejectsNonPositiveTimeout(t *testing.T) {
	r := toolregistry.NewRegistry()
	bp := validBlueprint("gpt-4o", toolregistry.ToolTypeChat)
	bp.Timeout = 0
	require.Error(t, r.Register(bp))
}

func TestRegister_RejectsInvalidParameterRoute(t *testing.T) {
	r := toolregistry.NewRegistry()
	bp := validBlueprint("gpt-4o", toolregistry.ToolTypeChat)
	bp.Parameters = []toolregistry.ParameterInfo{{Name: "x", Route: "bogus"}}
	require.Error(t, r.Register(bp))
}

func TestGetTool_Found(t *testing.T) {
	r := toolregistry.NewRegistry()
	require.NoError(t, r.Register(validBlueprint("gpt-4o", toolregistry.ToolTypeChat)))
	tool, ok := r.GetTool("chat_with_Gpt4o")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", tool.Model)
}

func TestGetTool_NotFound(t *testing.T) {
	r := toolregistry.NewRegistry()
	_, ok := r.GetTool("nonexistent")
	assert.False(t, ok)
}
