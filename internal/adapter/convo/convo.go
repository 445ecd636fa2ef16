// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package convo holds the history-load/persist logic shared by every
// chat-shape provider adapter, so each adapter package only has to
// implement its own wire format and tool-call loop.
package convo

import (
	"context"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/session"
)

// Loader is the subset of session.Store an adapter needs.
type Loader interface {
	GetHistory(ctx context.Context, key session.Key) (datatypes.History, bool, error)
	SetHistory(ctx context.Context, key session.Key, h datatypes.History) error
	SetResponseID(ctx context.Context, key session.Key, id string) error
}

// LoadChat returns the prior chat-shape messages for callCtx, failing with
// backend-rejected if the session is tagged as Responses-shape instead of
// silently converting (SPEC_FULL.md §9).
func LoadChat(ctx context.Context, store Loader, callCtx adapter.CallContext) ([]datatypes.Message, error) {
	project, tool, sid := callCtx.Key()
	key := session.Key{Project: project, Tool: tool, SessionID: sid}
	h, ok, err := store.GetHistory(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if h.Format == datatypes.FormatResponses {
		return nil, errs.New(errs.BackendRejected, "session %s is in responses format, this adapter uses chat format", sid)
	}
	return h.Chat, nil
}

// PersistChat appends the messages in turn, in order, to callCtx's session as
// chat-shape history, and records responseID when non-empty.
func PersistChat(ctx context.Context, store Loader, callCtx adapter.CallContext, turn []datatypes.Message, responseID string) error {
	project, tool, sid := callCtx.Key()
	key := session.Key{Project: project, Tool: tool, SessionID: sid}

	prior, ok, err := store.GetHistory(ctx, key)
	if err != nil {
		return err
	}
	h := datatypes.History{Format: datatypes.FormatChat}
	if ok {
		h = prior
		h.Format = datatypes.FormatChat
	}
	h.Chat = append(h.Chat, turn...)

	if err := store.SetHistory(ctx, key, h); err != nil {
		return err
	}
	if responseID != "" {
		if err := store.SetResponseID(ctx, key, responseID); err != nil {
			return err
		}
	}
	return nil
}

// ItemStore is the subset of session.Store a Responses-shape adapter needs:
// one append per item, each deduped against the session's full call_id
// history on write (see session.Store.AppendFunctionCall/AppendFunctionOutput),
// plus GetHistory to load prior turns.
type ItemStore interface {
	GetHistory(ctx context.Context, key session.Key) (datatypes.History, bool, error)
	AppendResponseMessage(ctx context.Context, key session.Key, role datatypes.Role, content []datatypes.ContentPart) error
	AppendFunctionCall(ctx context.Context, key session.Key, name, arguments, callID string) error
	AppendFunctionOutput(ctx context.Context, key session.Key, callID, output string) error
	SetResponseID(ctx context.Context, key session.Key, id string) error
}

// LoadResponses returns the prior Responses-shape items for callCtx, failing
// with backend-rejected if the session is tagged chat-shape instead of
// silently converting (SPEC_FULL.md §9).
func LoadResponses(ctx context.Context, store ItemStore, callCtx adapter.CallContext) ([]datatypes.ResponsesItem, error) {
	project, tool, sid := callCtx.Key()
	key := session.Key{Project: project, Tool: tool, SessionID: sid}
	h, ok, err := store.GetHistory(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if h.Format == datatypes.FormatChat {
		return nil, errs.New(errs.BackendRejected, "session %s is in chat format, this adapter uses responses format", sid)
	}
	return h.Responses, nil
}
