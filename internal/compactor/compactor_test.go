// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compactor_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/mock"
	"github.com/lukacf/forcegate/internal/compactor"
	"github.com/lukacf/forcegate/internal/datatypes"
)

func registryWithMock(t *testing.T) *adapter.Registry {
	t.Helper()
	reg := adapter.NewRegistry()
	reg.RegisterFactory("mock", func(model string) (adapter.Adapter, error) { return mock.New(model) })
	return reg
}

func TestCompactForCLI_EmptyHistoryReturnsEmpty(t *testing.T) {
	c := compactor.New(registryWithMock(t), "mock", "mock-1")
	out, err := c.CompactForCLI(context.Background(), datatypes.History{Format: datatypes.FormatChat})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCompactForCLI_SmallHistoryPassesThroughWithoutCallingAdapter(t *testing.T) {
	c := compactor.New(registryWithMock(t), "mock", "mock-1")
	h := datatypes.History{
		Format: datatypes.FormatChat,
		Chat: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: "hello"},
			{Role: datatypes.RoleAssistant, Content: "hi there"},
		},
	}
	out, err := c.CompactForCLI(context.Background(), h)
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "hi there")
	assert.NotContains(t, out, `"prompt"`) // mock's echo marker never appears
}

func TestCompactForCLI_LargeHistorySummarizesViaAdapter(t *testing.T) {
	c := compactor.New(registryWithMock(t), "mock", "mock-1")
	var msgs []datatypes.Message
	for i := 0; i < 40_000; i++ {
		msgs = append(msgs, datatypes.Message{Role: datatypes.RoleUser, Content: "word "})
	}
	h := datatypes.History{Format: datatypes.FormatChat, Chat: msgs}

	out, err := c.CompactForCLI(context.Background(), h)
	require.NoError(t, err)
	assert.Contains(t, out, `"prompt"`) // mock echoes its prompt, proving the adapter ran
	assert.True(t, strings.Contains(out, "Summarize the conversation"))
}
