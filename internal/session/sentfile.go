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

// SentFileInfo is the change-detection baseline for one file previously
// sent inline within a session.
type SentFileInfo struct {
	LastSize    int64 `json:"last_size"`
	LastModTime int64 `json:"last_mtime_ns"`
}

func sentFileKey(sessionID, path string) []byte {
	return []byte(fmt.Sprintf("sentfile:%s\x00%s", sessionID, path))
}

// GetSentFileInfo returns the baseline for (sessionID, path), or ok=false if
// the file has never been sent inline before.
func (s *Store) GetSentFileInfo(ctx context.Context, sessionID, path string) (SentFileInfo, bool, error) {
	var info SentFileInfo
	var found bool
	err := s.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get(sentFileKey(sessionID, path))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &info) })
	})
	if err != nil {
		return SentFileInfo{}, false, errs.Wrap(errs.StorageError, err, "get sent-file info %s/%s", sessionID, path)
	}
	return info, found, nil
}

// SetSentFileInfo records a new baseline after (re)sending path inline.
func (s *Store) SetSentFileInfo(ctx context.Context, sessionID, path string, info SentFileInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "marshal sent-file info %s/%s", sessionID, path)
	}
	err = s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		return txn.Set(sentFileKey(sessionID, path), raw)
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "set sent-file info %s/%s", sessionID, path)
	}
	return nil
}
