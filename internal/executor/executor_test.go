// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/mock"
	forcectx "github.com/lukacf/forcegate/internal/context"
	"github.com/lukacf/forcegate/internal/executor"
	"github.com/lukacf/forcegate/internal/params"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/storage/badger"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

func newTestExecutor(t *testing.T) (*executor.Executor, *adapter.Registry) {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := session.New(db)
	builder := forcectx.New(store)

	reg := adapter.NewRegistry()
	reg.RegisterFactory("mock", func(model string) (adapter.Adapter, error) { return mock.New(model) })

	return executor.New(reg, builder, nil, nil, params.StrictMode), reg
}

func chatTool() toolregistry.ToolMetadata {
	return toolregistry.ToolMetadata{
		ID:            "chat_with_Mock1",
		AdapterKey:    "mock",
		Model:         "mock-1",
		Timeout:       5 * time.Second,
		ContextWindow: 128_000,
		Parameters: []toolregistry.ParameterInfo{
			{Name: "instructions", Route: toolregistry.RoutePrompt},
		},
	}
}

type stubLocalService struct {
	called map[string]interface{}
}

func (s *stubLocalService) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	s.called = args
	return "local-result", nil
}

func TestExecute_LocalServiceShortcutsAdapterPipeline(t *testing.T) {
	exec, _ := newTestExecutor(t)
	svc := &stubLocalService{}
	tool := toolregistry.ToolMetadata{ID: "list_sessions", LocalService: svc}

	res, err := exec.Execute(context.Background(), tool, map[string]interface{}{}, adapter.CallContext{}, "/proj")
	require.NoError(t, err)
	assert.Equal(t, "local-result", res.Content)
}

func TestExecute_HappyPathCallsMockAdapter(t *testing.T) {
	exec, _ := newTestExecutor(t)
	tool := chatTool()

	res, err := exec.Execute(context.Background(), tool, map[string]interface{}{"instructions": "hello"}, adapter.CallContext{Project: "p", Tool: tool.ID, SessionID: "s1"}, "/proj")
	require.NoError(t, err)
	assert.Contains(t, res.Content, `"session_id":"s1"`)
}

func TestExecute_RejectsUnknownParameterInStrictMode(t *testing.T) {
	exec, _ := newTestExecutor(t)
	tool := chatTool()

	_, err := exec.Execute(context.Background(), tool, map[string]interface{}{"bogus": 1}, adapter.CallContext{SessionID: "s1"}, "/proj")
	require.Error(t, err)
}

func TestSafeExecute_SwallowsCancellation(t *testing.T) {
	exec, _ := newTestExecutor(t)
	tool := chatTool()
	tool.Timeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := exec.SafeExecute(ctx, tool, map[string]interface{}{"instructions": "hello"}, adapter.CallContext{SessionID: "s2"}, "/proj")
	require.NoError(t, err)
	assert.Equal(t, "", res.Content)
}
