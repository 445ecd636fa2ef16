// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package context implements the stable-inline context builder: a
// deterministic inline/overflow split over a file set, bounded by a token
// budget, whose inline set is frozen across turns once any file has
// overflowed.
package context

import (
	"context"
	"os"
	"sort"

	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/gather"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/tokens"
)

// InlineFile is one file selected to go directly into the prompt.
type InlineFile struct {
	Path    string
	Content string
}

// Result is the outcome of a BuildContext call.
type Result struct {
	Inline   []InlineFile
	Overflow []string // paths routed to the vector store
}

// Params configures one BuildContext call.
type Params struct {
	Root         string // project root, for .gitignore resolution
	SessionID    string
	Paths        []string // caller-supplied files/directories
	Attachments  []string // always routed to overflow, bypass text heuristic
	BudgetTokens int      // already reduced for instructions/output-format reserve
}

// Builder computes inline/overflow splits and persists the stable-inline
// state via a session.Store.
type Builder struct {
	store *session.Store
}

// New constructs a Builder backed by store.
func New(store *session.Store) *Builder {
	return &Builder{store: store}
}

// BuildContext runs the first-call or subsequent-call algorithm depending on
// whether p.SessionID already has a StableInlineList.
func (b *Builder) BuildContext(ctx context.Context, p Params) (Result, error) {
	files, err := gather.Gather(p.Root, p.Paths, gather.Options{})
	if err != nil {
		return Result{}, errs.Wrap(errs.StorageError, err, "gather files")
	}

	var attachments []gather.File
	if len(p.Attachments) > 0 {
		attachments, err = gather.Gather(p.Root, p.Attachments, gather.Options{Attachments: true})
		if err != nil {
			return Result{}, errs.Wrap(errs.StorageError, err, "gather attachments")
		}
	}

	stable, hasStable, err := b.store.GetStableList(ctx, p.SessionID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if !hasStable {
		result, err = b.firstCall(ctx, p, files)
	} else {
		result, err = b.subsequentCall(ctx, p, files, stable)
	}
	if err != nil {
		return Result{}, err
	}

	for _, a := range attachments {
		result.Overflow = append(result.Overflow, a.Path)
	}
	return result, nil
}

// firstCall implements SPEC_FULL.md §4.4's first-call algorithm.
func (b *Builder) firstCall(ctx context.Context, p Params, files []gather.File) (Result, error) {
	sorted := append([]gather.File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool {
		ei, ej := tokens.EstimateBytesFast(sorted[i].Size), tokens.EstimateBytesFast(sorted[j].Size)
		if ei != ej {
			return ei < ej
		}
		return sorted[i].Path < sorted[j].Path
	})

	var inlineCandidates []gather.File
	var overflow []string
	running := 0
	for _, f := range sorted {
		est := tokens.EstimateBytesFast(f.Size)
		if running+est > p.BudgetTokens {
			overflow = append(overflow, f.Path)
			continue
		}
		running += est
		inlineCandidates = append(inlineCandidates, f)
	}

	inline, moved, err := loadAndFit(inlineCandidates, p.BudgetTokens)
	if err != nil {
		return Result{}, err
	}
	overflow = append(overflow, moved...)

	if len(overflow) > 0 {
		paths := make([]string, len(inline))
		for i, f := range inline {
			paths[i] = f.Path
		}
		if err := b.store.SetStableList(ctx, p.SessionID, paths); err != nil {
			return Result{}, err
		}
	}

	out := make([]InlineFile, 0, len(inline))
	for _, f := range inline {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			overflow = append(overflow, f.Path)
			continue
		}
		out = append(out, InlineFile{Path: f.Path, Content: string(content)})
		if err := b.store.SetSentFileInfo(ctx, p.SessionID, f.Path, session.SentFileInfo{LastSize: f.Size, LastModTime: f.ModTime}); err != nil {
			return Result{}, err
		}
	}

	return Result{Inline: out, Overflow: overflow}, nil
}

// loadAndFit precisely re-tokenizes candidates and trims largest-first
// until the total fits budget, returning (kept, movedToOverflowPaths).
func loadAndFit(candidates []gather.File, budget int) ([]gather.File, []string, error) {
	type scored struct {
		file    gather.File
		content string
		tok     int
	}
	loaded := make([]scored, 0, len(candidates))
	for _, f := range candidates {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			continue // unreadable: drop silently, treated as unstat'able
		}
		loaded = append(loaded, scored{file: f, content: content, tok: tokens.Estimate(string(content))})
	}

	total := 0
	for _, s := range loaded {
		total += s.tok
	}

	var moved []string
	if total > budget {
		sort.Slice(loaded, func(i, j int) bool { return loaded[i].tok > loaded[j].tok })
		i := 0
		for total > budget && i < len(loaded) {
			total -= loaded[i].tok
			moved = append(moved, loaded[i].file.Path)
			i++
		}
		loaded = loaded[i:]
	}

	kept := make([]gather.File, len(loaded))
	for i, s := range loaded {
		kept[i] = s.file
	}
	return kept, moved, nil
}

// subsequentCall implements SPEC_FULL.md §4.4's subsequent-call algorithm:
// the stable list never grows; changed members are resent, unchanged
// members are skipped, and anything outside the stable list goes to
// overflow.
func (b *Builder) subsequentCall(ctx context.Context, p Params, files []gather.File, stable session.StableInlineList) (Result, error) {
	stableSet := make(map[string]bool, len(stable.InlinePaths))
	for _, path := range stable.InlinePaths {
		stableSet[path] = true
	}

	current := make(map[string]gather.File, len(files))
	for _, f := range files {
		current[f.Path] = f
	}

	var out []InlineFile
	var overflow []string

	for _, path := range stable.InlinePaths {
		f, present := current[path]
		if !present {
			// removed since last turn: simply not sent.
			continue
		}
		prior, hasPrior, err := b.store.GetSentFileInfo(ctx, p.SessionID, path)
		if err != nil {
			return Result{}, err
		}
		if hasPrior && prior.LastSize == f.Size && prior.LastModTime == f.ModTime {
			continue // unchanged: model already has it
		}
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		out = append(out, InlineFile{Path: path, Content: string(content)})
		if err := b.store.SetSentFileInfo(ctx, p.SessionID, path, session.SentFileInfo{LastSize: f.Size, LastModTime: f.ModTime}); err != nil {
			return Result{}, err
		}
	}

	for _, f := range files {
		if !stableSet[f.Path] {
			overflow = append(overflow, f.Path)
		}
	}

	return Result{Inline: out, Overflow: overflow}, nil
}
