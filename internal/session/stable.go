// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"encoding/json"
	"fmt"

	badgerlib "github.com/dgraph-io/badger/v4"

	"github.com/lukacf/forcegate/internal/errs"
)

// StableInlineList is the per-session frozen set of inline file paths.
type StableInlineList struct {
	InlinePaths []string `json:"inline_paths"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

func stableKey(sessionID string) []byte {
	return []byte("stable:" + sessionID)
}

// GetStableList returns the session's stable list, or ok=false if none
// exists (first call, or reset_session was issued).
func (s *Store) GetStableList(ctx context.Context, sessionID string) (StableInlineList, bool, error) {
	var list StableInlineList
	var found bool
	err := s.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get(stableKey(sessionID))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &list) })
	})
	if err != nil {
		return StableInlineList{}, false, errs.Wrap(errs.StorageError, err, "get stable list %s", sessionID)
	}
	return list, found, nil
}

// SetStableList persists the stable list. Per SPEC_FULL.md §4.4, the
// builder only calls this once, on the first turn that overflows; it never
// grows an existing list.
func (s *Store) SetStableList(ctx context.Context, sessionID string, paths []string) error {
	now := s.now().Unix()
	list := StableInlineList{InlinePaths: paths, CreatedAt: now, UpdatedAt: now}
	if existing, ok, err := s.GetStableList(ctx, sessionID); err == nil && ok {
		list.CreatedAt = existing.CreatedAt
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "marshal stable list %s", sessionID)
	}
	err = s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		return txn.Set(stableKey(sessionID), raw)
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "set stable list %s", sessionID)
	}
	return nil
}

// ResetSession deletes the session's stable list and sent-file baselines so
// the next context build starts as if it were the first turn. It does not
// delete the session's history.
func (s *Store) ResetSession(ctx context.Context, sessionID string) error {
	err := s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		if err := deleteIfExists(txn, stableKey(sessionID)); err != nil {
			return err
		}
		it := txn.NewIterator(badgerlib.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(fmt.Sprintf("sentfile:%s\x00", sessionID))
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "reset session %s", sessionID)
	}
	return nil
}

func deleteIfExists(txn *badgerlib.Txn, key []byte) error {
	err := txn.Delete(key)
	if err == badgerlib.ErrKeyNotFound {
		return nil
	}
	return err
}
