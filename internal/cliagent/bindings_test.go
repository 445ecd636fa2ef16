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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/cliagent"
	"github.com/lukacf/forcegate/internal/storage/badger"
)

func TestSessionBridge_RoundTripsAndIsolatesByCLI(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bridge := cliagent.NewSessionBridge(db)
	ctx := context.Background()

	_, ok, err := bridge.GetCLISessionID(ctx, "proj", "s1", "claude")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, bridge.StoreCLISessionID(ctx, "proj", "s1", "claude", "claude-native-1"))
	require.NoError(t, bridge.StoreCLISessionID(ctx, "proj", "s1", "gemini", "gemini-native-1"))

	got, ok, err := bridge.GetCLISessionID(ctx, "proj", "s1", "claude")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "claude-native-1", got)

	got, ok, err = bridge.GetCLISessionID(ctx, "proj", "s1", "gemini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gemini-native-1", got)
}
