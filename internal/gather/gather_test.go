// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gather

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGather_HonorsRootGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\nbuild/\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "debug.log"), "noise")
	writeFile(t, filepath.Join(root, "build", "out.go"), "package build")

	files, err := Gather(root, []string{root}, Options{})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		paths = append(paths, rel)
	}
	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, "debug.log")
	assert.NotContains(t, paths, filepath.Join("build", "out.go"))
}

func TestGather_ClassifiesBinaryBySniffing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "data.bin"), "\x00\x01\x02binary")
	writeFile(t, filepath.Join(root, "notes"), "just plain text, no extension")

	files, err := Gather(root, []string{root}, Options{})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		paths = append(paths, rel)
	}
	assert.NotContains(t, paths, "data.bin")
	assert.Contains(t, paths, "notes")
}

func TestGather_AttachmentsBypassTextHeuristic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "image.bin"), "\x00\x01binarydata")

	files, err := Gather(root, []string{filepath.Join(root, "image.bin")}, Options{Attachments: true})
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestGather_DeterministicOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.go"), "package b")
	writeFile(t, filepath.Join(root, "a.go"), "package a")

	files, err := Gather(root, []string{root}, Options{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Less(t, files[0].Path, files[1].Path)
}
