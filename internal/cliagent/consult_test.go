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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/mock"
	"github.com/lukacf/forcegate/internal/cliagent"
	"github.com/lukacf/forcegate/internal/compactor"
	forcectx "github.com/lukacf/forcegate/internal/context"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/executor"
	"github.com/lukacf/forcegate/internal/params"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/storage/badger"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

func datatypesHistory(userMsg, assistantMsg string) datatypes.History {
	return datatypes.History{
		Format: datatypes.FormatChat,
		Chat: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: userMsg, Tool: "work_with"},
			{Role: datatypes.RoleAssistant, Content: assistantMsg, Tool: "work_with"},
		},
	}
}

func newConsultationHarness(t *testing.T) (*cliagent.ConsultationService, *session.Store) {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := adapter.NewRegistry()
	reg.RegisterFactory("mock", func(model string) (adapter.Adapter, error) { return mock.New(model) })

	tools := toolregistry.NewRegistry()
	require.NoError(t, tools.RegisterFixed("chat_with_Mock1", toolregistry.ToolMetadata{
		AdapterKey:    "mock",
		Model:         "mock-1",
		Timeout:       5 * time.Second,
		ContextWindow: 128_000,
		Parameters: []toolregistry.ParameterInfo{
			{Name: "instructions", Route: toolregistry.RoutePrompt},
		},
	}))

	store := session.New(db)
	exec := executor.New(reg, forcectx.New(store), nil, nil, params.StrictMode)
	comp := compactor.New(reg, "mock", "mock-1")

	return cliagent.NewConsultationService(tools, exec, store, comp), store
}

func TestConsultationService_RoutesNormalizedModelToChatTool(t *testing.T) {
	svc, _ := newConsultationHarness(t)

	out, err := svc.Invoke(context.Background(), map[string]interface{}{
		"model":       "mock1",
		"question":    "what should I do next",
		"session_id":  "s1",
		"project_dir": "/proj",
	})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "what should I do next")
}

func TestConsultationService_UnknownModelReturnsNotFound(t *testing.T) {
	svc, _ := newConsultationHarness(t)

	_, err := svc.Invoke(context.Background(), map[string]interface{}{
		"model":      "no-such-model",
		"question":   "hi",
		"session_id": "s1",
	})
	require.Error(t, err)
}

func TestConsultationService_PersistsTurnsUnderSharedSessionBucket(t *testing.T) {
	svc, store := newConsultationHarness(t)

	_, err := svc.Invoke(context.Background(), map[string]interface{}{
		"model":       "mock1",
		"question":    "first question",
		"session_id":  "shared-1",
		"project_dir": "/home/user/proj",
	})
	require.NoError(t, err)

	history, ok, err := store.GetHistory(context.Background(), session.Key{Project: "proj", Tool: "work_with", SessionID: "shared-1"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, history.Chat, 2)
	assert.Equal(t, "consult_with", history.Chat[0].Tool)
	assert.Contains(t, history.Chat[0].Content, "first question")
}

func TestConsultationService_InjectsCompactedHistoryFromPriorWorkWithTurn(t *testing.T) {
	svc, store := newConsultationHarness(t)
	key := session.Key{Project: "proj", Tool: "work_with", SessionID: "shared-2"}
	require.NoError(t, store.SetHistory(context.Background(), key, datatypesHistory(
		"earlier task from a CLI session", "earlier CLI response mentioning file foo.go",
	)))

	out, err := svc.Invoke(context.Background(), map[string]interface{}{
		"model":       "mock1",
		"question":    "continue from there",
		"session_id":  "shared-2",
		"project_dir": "/home/user/proj",
	})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "foo.go")
}
