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
	"fmt"

	badgerlib "github.com/dgraph-io/badger/v4"

	"github.com/lukacf/forcegate/internal/errs"
)

func cliBindingKey(project, sessionID, cliName string) []byte {
	return []byte(fmt.Sprintf("clibind:%s\x00%s\x00%s", project, sessionID, cliName))
}

// GetCLISessionID returns the upstream CLI session id bound to
// (project, sessionID, cliName), or ok=false if none is bound yet.
func (s *Store) GetCLISessionID(ctx context.Context, project, sessionID, cliName string) (string, bool, error) {
	var id string
	var found bool
	err := s.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get(cliBindingKey(project, sessionID, cliName))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { id = string(val); return nil })
	})
	if err != nil {
		return "", false, errs.Wrap(errs.StorageError, err, "get cli binding")
	}
	return id, found, nil
}

// SetCLISessionID records the upstream CLI session id to resume next time.
func (s *Store) SetCLISessionID(ctx context.Context, project, sessionID, cliName, cliSessionID string) error {
	err := s.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		return txn.Set(cliBindingKey(project, sessionID, cliName), []byte(cliSessionID))
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "set cli binding")
	}
	return nil
}
