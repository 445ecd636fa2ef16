// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package context

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/storage/badger"
)

func newTestBuilder(t *testing.T) (*Builder, *session.Store) {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := session.New(db, session.WithCleanupProbability(0))
	return New(store), store
}

func writeSized(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", n)), 0o644))
}

// S1: three small files all fit inline, no stable list persisted.
func TestBuildContext_S1_AllInline(t *testing.T) {
	b, store := newTestBuilder(t)
	root := t.TempDir()
	writeSized(t, filepath.Join(root, "a.txt"), 400)
	writeSized(t, filepath.Join(root, "b.txt"), 800)
	writeSized(t, filepath.Join(root, "c.txt"), 1200)

	res, err := b.BuildContext(context.Background(), Params{
		Root: root, SessionID: "s1", Paths: []string{root}, BudgetTokens: 10_000,
	})
	require.NoError(t, err)
	assert.Len(t, res.Inline, 3)
	assert.Empty(t, res.Overflow)

	_, hasStable, err := store.GetStableList(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, hasStable, "no stable list when nothing overflowed")
}

// S2: twenty 50kB files with a small budget overflow most; a stable list
// is persisted containing exactly the inlined paths.
func TestBuildContext_S2_Overflow(t *testing.T) {
	b, store := newTestBuilder(t)
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeSized(t, filepath.Join(root, "f"+string(rune('a'+i))+".txt"), 50_000)
	}

	res, err := b.BuildContext(context.Background(), Params{
		Root: root, SessionID: "s2", Paths: []string{root}, BudgetTokens: 40_000,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Overflow)
	assert.NotEmpty(t, res.Inline)

	list, ok, err := store.GetStableList(context.Background(), "s2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, list.InlinePaths, len(res.Inline))
}

// S3: after S2, editing one inlined file (same size, newer mtime) causes
// only that file to be resent; everything else in the stable list is
// skipped, and overflow is unchanged.
func TestBuildContext_S3_ChangeDetection(t *testing.T) {
	b, store := newTestBuilder(t)
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeSized(t, filepath.Join(root, "f"+string(rune('a'+i))+".txt"), 50_000)
	}

	first, err := b.BuildContext(context.Background(), Params{
		Root: root, SessionID: "s3", Paths: []string{root}, BudgetTokens: 40_000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.Inline)

	edited := first.Inline[0].Path
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(edited, []byte(strings.Repeat("x", 50_000)), 0o644))
	now := time.Now()
	require.NoError(t, os.Chtimes(edited, now, now))

	second, err := b.BuildContext(context.Background(), Params{
		Root: root, SessionID: "s3", Paths: []string{root}, BudgetTokens: 40_000,
	})
	require.NoError(t, err)
	require.Len(t, second.Inline, 1)
	assert.Equal(t, edited, second.Inline[0].Path)
	assert.ElementsMatch(t, first.Overflow, second.Overflow)

	_ = store
}
