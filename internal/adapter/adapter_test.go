// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/mock"
	"github.com/lukacf/forcegate/internal/errs"
)

func TestRegistry_GetAdapter_MemoizesByKeyAndModel(t *testing.T) {
	r := adapter.NewRegistry()
	calls := 0
	r.RegisterFactory("mock", func(model string) (adapter.Adapter, error) {
		calls++
		return mock.New(model)
	})

	a1, err := r.GetAdapter("mock", "gpt-5")
	require.NoError(t, err)
	a2, err := r.GetAdapter("mock", "gpt-5")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, 1, calls)

	_, err = r.GetAdapter("mock", "other-model")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRegistry_GetAdapter_UnknownKey(t *testing.T) {
	r := adapter.NewRegistry()
	_, err := r.GetAdapter("nonexistent", "m")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestApplyReasoningEffort_DoesNotOverrideExplicit(t *testing.T) {
	caps := adapter.Capabilities{SupportsReasoningEffort: true, DefaultReasoningEffort: "high"}
	params := map[string]interface{}{"reasoning_effort": "low"}
	adapter.ApplyReasoningEffort(params, caps)
	assert.Equal(t, "low", params["reasoning_effort"])
}

func TestApplyReasoningEffort_AppliesDefaultWhenAbsent(t *testing.T) {
	caps := adapter.Capabilities{SupportsReasoningEffort: true, DefaultReasoningEffort: "high"}
	params := map[string]interface{}{}
	adapter.ApplyReasoningEffort(params, caps)
	assert.Equal(t, "high", params["reasoning_effort"])
}

func TestApplyReasoningEffort_NoopWhenUnsupported(t *testing.T) {
	caps := adapter.Capabilities{SupportsReasoningEffort: false, DefaultReasoningEffort: "high"}
	params := map[string]interface{}{}
	adapter.ApplyReasoningEffort(params, caps)
	_, present := params["reasoning_effort"]
	assert.False(t, present)
}

func TestMockAdapter_EchoesInputsDeterministically(t *testing.T) {
	a, err := mock.New("mock-1")
	require.NoError(t, err)

	callCtx := adapter.CallContext{Project: "p", Tool: "t", SessionID: "s", VectorStoreIDs: []string{"vs1"}}
	res, err := a.Generate(context.Background(), "hello", map[string]interface{}{"temperature": 0.2}, callCtx, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Content, `"session_id":"s"`)
	assert.Contains(t, res.Content, `"prompt":"hello"`)
}

func TestMockAdapter_RespectsCancellation(t *testing.T) {
	a, err := mock.New("mock-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Generate(ctx, "hello", nil, adapter.CallContext{}, nil)
	require.Error(t, err)
}
