// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cliagent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/cliagent"
)

func TestResolveModelToCLI(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4-5", "claude"},
		{"claude-opus-4-5", "claude"},
		{"gemini-3-pro", "gemini"},
		{"gpt-5.2", "codex"},
		{"o4-mini", "codex"},
	}
	for _, tc := range cases {
		cli, err := cliagent.ResolveModelToCLI(tc.model)
		require.NoError(t, err)
		assert.Equal(t, tc.want, cli)
	}
}

func TestResolveModelToCLI_UnknownModel(t *testing.T) {
	_, err := cliagent.ResolveModelToCLI("some-future-model-nobody-registered")
	require.Error(t, err)
}
