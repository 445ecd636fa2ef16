// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cliagent

import (
	"context"
	"fmt"

	badgerlib "github.com/dgraph-io/badger/v4"

	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/storage/badger"
)

// SessionBridge persists the mapping from a forcegate session to the
// CLI-native session id a given CLI reported, keyed by
// (project, session_id, cli_name), so a later call can --resume it.
type SessionBridge struct {
	db *badger.DB
}

// NewSessionBridge constructs a bridge over db.
func NewSessionBridge(db *badger.DB) *SessionBridge {
	return &SessionBridge{db: db}
}

func bindingKey(project, sessionID, cliName string) []byte {
	return []byte(fmt.Sprintf("cli:%s\x00%s\x00%s", project, sessionID, cliName))
}

// GetCLISessionID returns the bound CLI session id, or ok=false if none has
// been recorded yet.
func (b *SessionBridge) GetCLISessionID(ctx context.Context, project, sessionID, cliName string) (string, bool, error) {
	var cliSessionID string
	var found bool
	err := b.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get(bindingKey(project, sessionID, cliName))
		if err == badgerlib.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			cliSessionID = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, errs.Wrap(errs.StorageError, err, "get cli session binding")
	}
	return cliSessionID, found, nil
}

// StoreCLISessionID records the binding for future resume.
func (b *SessionBridge) StoreCLISessionID(ctx context.Context, project, sessionID, cliName, cliSessionID string) error {
	err := b.db.WithTxn(ctx, func(txn *badgerlib.Txn) error {
		return txn.Set(bindingKey(project, sessionID, cliName), []byte(cliSessionID))
	})
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "store cli session binding")
	}
	return nil
}
