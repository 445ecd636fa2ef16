// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the gateway's unified session cache: a single
// durable table keyed by (project, tool, session_id), plus the sibling
// tables for stable-inline lists, sent-file baselines, CLI session
// bindings, and the summary cache, all backed by
// internal/storage/badger.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	badgerlib "github.com/dgraph-io/badger/v4"

	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/sanitize"
	"github.com/lukacf/forcegate/internal/storage/badger"
)

// Key identifies one unified session.
type Key struct {
	Project   string
	Tool      string
	SessionID string
}

func (k Key) String() string {
	return fmt.Sprintf("sess:%s\x00%s\x00%s", k.Project, k.Tool, k.SessionID)
}

// Record is the durable payload for a UnifiedSession.
type Record struct {
	History          datatypes.History      `json:"history"`
	ProviderMetadata map[string]interface{} `json:"provider_metadata"`
	UpdatedAt        int64                  `json:"updated_at"`
}

// Store is the unified session cache.
type Store struct {
	db          *badger.DB
	ttl         time.Duration
	cleanupProb float64
	now         func() time.Time
	rand        func() float64
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the read-expiry TTL (default 90 days).
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithCleanupProbability overrides the per-write sweep probability.
func WithCleanupProbability(p float64) Option {
	return func(s *Store) { s.cleanupProb = p }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs a Store over an already-open database.
func New(db *badger.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		ttl:         90 * 24 * time.Hour,
		cleanupProb: 0.01,
		now:         time.Now,
		rand:        rand.Float64,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetSession returns the record for key, or ok=false if absent or expired.
// An expired entry is deleted as part of the read.
func (s *Store) GetSession(ctx context.Context, key Key) (Record, bool, error) {
	var rec Record
	var found bool

	err := s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var raw []byte
		if err := item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if s.expired(rec.UpdatedAt) {
			return txn.Delete([]byte(key.String()))
		}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, false, errs.Wrap(errs.StorageError, err, "get session %v", key)
	}
	return rec, found, nil
}

func (s *Store) expired(updatedAt int64) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Unix()-updatedAt > int64(s.ttl.Seconds())
}

// SetSession fully replaces the record for key, refreshes UpdatedAt, and
// sanitizes history before persisting. It then runs the probabilistic
// cleanup sweep.
func (s *Store) SetSession(ctx context.Context, key Key, rec Record) error {
	rec.History = sanitize.History(rec.History)
	rec.UpdatedAt = s.now().Unix()

	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "marshal session %v", key)
	}

	err = s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		return txn.Set([]byte(key.String()), raw)
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "set session %v", key)
	}

	s.maybeSweep(ctx)
	return nil
}

// DeleteSession removes the record for key.
func (s *Store) DeleteSession(ctx context.Context, key Key) error {
	err := s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		err := txn.Delete([]byte(key.String()))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "delete session %v", key)
	}
	return nil
}

// GetHistory is a convenience wrapper returning only the history.
func (s *Store) GetHistory(ctx context.Context, key Key) (datatypes.History, bool, error) {
	rec, ok, err := s.GetSession(ctx, key)
	return rec.History, ok, err
}

// SetHistory replaces only the history portion of the record, preserving
// provider metadata.
func (s *Store) SetHistory(ctx context.Context, key Key, h datatypes.History) error {
	rec, _, err := s.GetSession(ctx, key)
	if err != nil {
		return err
	}
	rec.History = h
	return s.SetSession(ctx, key, rec)
}

// AppendMessage appends a chat-shape message to key's history. Sessions
// already tagged FormatResponses reject this with backend-rejected: mixing
// shapes is never silently converted (SPEC_FULL.md §9).
func (s *Store) AppendMessage(ctx context.Context, key Key, msg datatypes.Message) error {
	rec, _, err := s.GetSession(ctx, key)
	if err != nil {
		return err
	}
	if rec.History.Format == "" {
		rec.History.Format = datatypes.FormatChat
	}
	if rec.History.Format != datatypes.FormatChat {
		return errs.New(errs.BackendRejected, "session %v is in %s format, cannot append a chat message", key, rec.History.Format)
	}
	rec.History.Chat = append(rec.History.Chat, msg)
	return s.SetSession(ctx, key, rec)
}

// AppendResponseMessage appends a message item to key's Responses-shape
// history.
func (s *Store) AppendResponseMessage(ctx context.Context, key Key, role datatypes.Role, content []datatypes.ContentPart) error {
	return s.appendResponsesItem(ctx, key, datatypes.ResponsesItem{
		Type: datatypes.ItemMessage, Role: role, Content: content,
	})
}

// AppendFunctionCall appends a function_call item to key's Responses-shape
// history.
func (s *Store) AppendFunctionCall(ctx context.Context, key Key, name, arguments, callID string) error {
	return s.appendResponsesItem(ctx, key, datatypes.ResponsesItem{
		Type: datatypes.ItemFunctionCall, Name: name, Arguments: arguments, CallID: callID,
	})
}

// AppendFunctionOutput appends a function_call_output item to key's
// Responses-shape history.
func (s *Store) AppendFunctionOutput(ctx context.Context, key Key, callID, output string) error {
	return s.appendResponsesItem(ctx, key, datatypes.ResponsesItem{
		Type: datatypes.ItemFunctionCallOutput, CallID: callID, Output: output,
	})
}

// appendResponsesItem appends item to key's Responses-shape history and
// renames any duplicate call_id the append introduces (SPEC_FULL.md §3.3):
// every function_call_output must match exactly one earlier function_call.
func (s *Store) appendResponsesItem(ctx context.Context, key Key, item datatypes.ResponsesItem) error {
	rec, _, err := s.GetSession(ctx, key)
	if err != nil {
		return err
	}
	if rec.History.Format == "" {
		rec.History.Format = datatypes.FormatResponses
	}
	if rec.History.Format != datatypes.FormatResponses {
		return errs.New(errs.BackendRejected, "session %v is in %s format, cannot append a responses item", key, rec.History.Format)
	}
	rec.History.Responses = datatypes.DedupToolIDs(append(rec.History.Responses, item))
	return s.SetSession(ctx, key, rec)
}

// GetMetadata returns one metadata value.
func (s *Store) GetMetadata(ctx context.Context, key Key, name string) (interface{}, bool, error) {
	rec, ok, err := s.GetSession(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, ok := rec.ProviderMetadata[name]
	return v, ok, nil
}

// SetMetadata sets one metadata value.
func (s *Store) SetMetadata(ctx context.Context, key Key, name string, value interface{}) error {
	rec, _, err := s.GetSession(ctx, key)
	if err != nil {
		return err
	}
	if rec.ProviderMetadata == nil {
		rec.ProviderMetadata = map[string]interface{}{}
	}
	rec.ProviderMetadata[name] = value
	return s.SetSession(ctx, key, rec)
}

// GetResponseID and SetResponseID are named convenience wrappers over the
// "response_id" metadata key, used by adapters to persist provider
// continuation tokens.
func (s *Store) GetResponseID(ctx context.Context, key Key) (string, bool, error) {
	v, ok, err := s.GetMetadata(ctx, key, "response_id")
	if err != nil || !ok {
		return "", ok, err
	}
	str, _ := v.(string)
	return str, true, nil
}

func (s *Store) SetResponseID(ctx context.Context, key Key, id string) error {
	return s.SetMetadata(ctx, key, "response_id", id)
}

// GetAPIFormat and SetAPIFormat wrap the session's stored api_format tag.
func (s *Store) GetAPIFormat(ctx context.Context, key Key) (datatypes.APIFormat, bool, error) {
	rec, ok, err := s.GetSession(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.History.Format, rec.History.Format != "", nil
}

func (s *Store) SetAPIFormat(ctx context.Context, key Key, format datatypes.APIFormat) error {
	rec, _, err := s.GetSession(ctx, key)
	if err != nil {
		return err
	}
	rec.History.Format = format
	return s.SetSession(ctx, key, rec)
}

// Summary is one row of List's output: enough to identify and describe a
// session without paying for its full history payload.
type Summary struct {
	Project   string `json:"project"`
	Tool      string `json:"tool"`
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
	UpdatedAt int64  `json:"updated_at"`
}

// List returns a summary of every non-expired session, optionally filtered
// to one project.
func (s *Store) List(ctx context.Context, project string) ([]Summary, error) {
	var out []Summary
	err := s.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		it := txn.NewIterator(badgerlib.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("sess:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key, ok := parseSessionKey(string(item.Key()))
			if !ok {
				continue
			}
			if project != "" && key.Project != project {
				continue
			}
			var rec Record
			err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) })
			if err != nil {
				continue
			}
			if s.expired(rec.UpdatedAt) {
				continue
			}
			out = append(out, Summary{
				Project: key.Project, Tool: key.Tool, SessionID: key.SessionID,
				Turns: rec.History.Len(), UpdatedAt: rec.UpdatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, err, "list sessions")
	}
	return out, nil
}

func parseSessionKey(raw string) (Key, bool) {
	const prefix = "sess:"
	if len(raw) <= len(prefix) {
		return Key{}, false
	}
	parts := strings.Split(raw[len(prefix):], "\x00")
	if len(parts) != 3 {
		return Key{}, false
	}
	return Key{Project: parts[0], Tool: parts[1], SessionID: parts[2]}, true
}

// maybeSweep runs the probabilistic expired-entry sweep. Failures are
// swallowed: a missed sweep simply tries again on the next write.
func (s *Store) maybeSweep(ctx context.Context) {
	if s.cleanupProb <= 0 || s.rand() >= s.cleanupProb {
		return
	}
	_ = s.sweep(ctx)
}

func (s *Store) sweep(ctx context.Context) error {
	var toDelete [][]byte
	err := s.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		it := txn.NewIterator(badgerlib.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("sess:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var rec Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue
			}
			if s.expired(rec.UpdatedAt) {
				toDelete = append(toDelete, append([]byte(nil), item.Key()...))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	return s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
