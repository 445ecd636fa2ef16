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

	badgerlib "github.com/dgraph-io/badger/v4"

	"github.com/lukacf/forcegate/internal/errs"
)

func summaryKey(key Key) []byte {
	return []byte("summary:" + key.String())
}

// GetSummary returns a cached compactor summary for key, if one exists.
func (s *Store) GetSummary(ctx context.Context, key Key) (string, bool, error) {
	var text string
	var found bool
	err := s.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get(summaryKey(key))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { text = string(val); return nil })
	})
	if err != nil {
		return "", false, errs.Wrap(errs.StorageError, err, "get summary")
	}
	return text, found, nil
}

// SetSummary caches a compactor summary for key.
func (s *Store) SetSummary(ctx context.Context, key Key, text string) error {
	err := s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		return txn.Set(summaryKey(key), []byte(text))
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "set summary")
	}
	return nil
}

// ClearSummary removes the cached summary for key, if any. AppendMessage
// does not call it.
func (s *Store) ClearSummary(ctx context.Context, key Key) error {
	err := s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		err := txn.Delete(summaryKey(key))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "clear summary")
	}
	return nil
}
