// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gather walks caller-supplied paths into a sorted, de-duplicated
// list of files considered plausibly textual, honoring the project's root
// .gitignore and a per-file size cap.
//
// Nested .gitignore files are intentionally not read: only the root
// .gitignore of the project directory is consulted.
package gather

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPerFileCapBytes bounds how large a single file may be and still be
// considered for text classification.
const DefaultPerFileCapBytes = 5 * 1024 * 1024

// sniffBytes is how many leading bytes are inspected for NUL bytes.
const sniffBytes = 8000

var textExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".rs": true,
	".rb": true, ".php": true, ".sh": true, ".bash": true, ".zsh": true,
	".md": true, ".txt": true, ".rst": true, ".yaml": true, ".yml": true,
	".json": true, ".toml": true, ".ini": true, ".cfg": true, ".conf": true,
	".html": true, ".css": true, ".scss": true, ".xml": true, ".sql": true,
	".proto": true, ".graphql": true, ".dockerfile": true, ".mod": true, ".sum": true,
}

// Options controls a Gather call.
type Options struct {
	// PerFileCapBytes overrides DefaultPerFileCapBytes when positive.
	PerFileCapBytes int64
	// Attachments bypasses the text-safety heuristic: every resolved,
	// existing file is included regardless of classification.
	Attachments bool
}

// File is one entry in a gathered set.
type File struct {
	Path    string
	Size    int64
	ModTime int64 // unix nanoseconds
}

// Gather resolves paths (files or directories) under root into a sorted,
// de-duplicated list of text-classified files. root is used to locate and
// apply a single top-level .gitignore; paths outside root are still walked
// but are not subject to that ignore file.
func Gather(root string, paths []string, opts Options) ([]File, error) {
	cap := opts.PerFileCapBytes
	if cap <= 0 {
		cap = DefaultPerFileCapBytes
	}

	ignore := loadGitignore(root)

	seen := make(map[string]struct{})
	var out []File

	add := func(p string) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil //nolint:nilerr // unresolvable path: skip, not fatal
		}
		if _, ok := seen[abs]; ok {
			return nil
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil // unstat'able: caller treats as "not sendable"
		}
		if info.IsDir() {
			return nil
		}
		if ignore.matches(root, abs, false) {
			return nil
		}
		if !opts.Attachments && !isText(abs, info.Size(), cap) {
			return nil
		}
		seen[abs] = struct{}{}
		out = append(out, File{Path: abs, Size: info.Size(), ModTime: info.ModTime().UnixNano()})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			_ = add(p)
			continue
		}
		_ = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if ignore.matches(root, path, true) {
					return filepath.SkipDir
				}
				return nil
			}
			return add(path)
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// isText classifies a file under the size cap as plausibly textual by
// extension allowlist or, failing that, by the absence of NUL bytes in its
// leading chunk. A file over the cap is never classified as text.
func isText(path string, size, cap int64) bool {
	if size > cap {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if textExtensions[ext] {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, _ := f.Read(buf)
	return !bytes.Contains(buf[:n], []byte{0})
}
