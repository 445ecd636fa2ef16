// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps github.com/dgraph-io/badger/v4 with context-aware
// transaction helpers and a managed value-log GC runner. It is the single
// embedded-database substrate behind the session cache and context builder.
package badger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config controls how a DB is opened.
type Config struct {
	InMemory          bool
	Path              string
	SyncWrites        bool
	NumVersionsToKeep int
	GCInterval        time.Duration
}

// DefaultConfig returns the settings for a durable, disk-backed database.
func DefaultConfig() Config {
	return Config{
		InMemory:          false,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
	}
}

// InMemoryConfig returns the settings for an ephemeral in-process database,
// as used by tests and by short-lived tool invocations that don't need a
// durable cache. GC is disabled: an in-memory database has no value log to
// reclaim.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
}

// DB wraps a *badger.DB with deadline-aware transaction helpers.
type DB struct {
	db *badger.DB
}

// Open opens a database per cfg. Persistent mode requires a non-empty Path.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger: path is required for persistent database")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts = opts.WithInMemory(cfg.InMemory)
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(nil)
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &DB{db: bdb}, nil
}

// OpenDB is the managed constructor production code uses: it opens per cfg
// and, when cfg.GCInterval is positive, could be paired with NewGCRunner by
// the caller. It exists as a distinct name from Open so call sites read as
// "give me a production-ready handle" versus "open with exactly these opts".
func OpenDB(cfg Config) (*DB, error) {
	return Open(cfg)
}

// OpenInMemory opens an ephemeral in-memory database.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

// OpenWithPath opens a durable database at dir using default settings.
func OpenWithPath(dir string) (*DB, error) {
	cfg := DefaultConfig()
	cfg.Path = dir
	return Open(cfg)
}

// Update runs fn in a read-write transaction, the raw badger.DB passthrough.
func (d *DB) Update(fn func(txn *badger.Txn) error) error {
	return d.db.Update(fn)
}

// View runs fn in a read-only transaction, the raw badger.DB passthrough.
func (d *DB) View(fn func(txn *badger.Txn) error) error {
	return d.db.View(fn)
}

// Close releases the database's file handles and in-memory structures.
func (d *DB) Close() error {
	return d.db.Close()
}

// WithTxn runs fn in an Update transaction unless ctx is already done, in
// which case it fails fast without starting a transaction.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badger: context cancelled: %w", err)
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn in a View transaction unless ctx is already done.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badger: context cancelled: %w", err)
	}
	return d.db.View(fn)
}

// RunValueLogGC reclaims value-log space at the given discard ratio,
// returning nil when no rewrite was needed (badger.ErrNoRewrite).
func (d *DB) RunValueLogGC(ratio float64) error {
	err := d.db.RunValueLogGC(ratio)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

// TempDir creates a temporary directory for a test-scoped persistent
// database, returning its path.
func TempDir(prefix string) (string, error) {
	return os.MkdirTemp("", prefix)
}

// CleanupDir removes a directory created by TempDir. An empty path is a
// no-op so deferred cleanup is safe even when TempDir was never called.
func CleanupDir(path string) error {
	if path == "" {
		return nil
	}
	return os.RemoveAll(path)
}
