// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package localtools

import (
	"context"
	"os"
	"strings"

	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/gather"
	"github.com/lukacf/forcegate/internal/session"
)

const defaultSearchLimit = 20

func intArg(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// historyHit is one match returned by SearchProjectHistory.
type historyHit struct {
	Tool      string `json:"tool"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Snippet   string `json:"snippet"`
}

// SearchProjectHistory implements the search_project_history fixed tool. It
// does a lexical scan over every persisted session turn for the project:
// there is no standing vector index over session history (vector stores in
// this gateway are per-call overflow, created and torn down around a single
// tool invocation), so this is a durable-KV substring search rather than a
// similarity search.
type SearchProjectHistory struct {
	Store *session.Store
}

func (t *SearchProjectHistory) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, errs.New(errs.InvalidParameter, "search_project_history requires query")
	}
	limit := intArg(args, "limit", defaultSearchLimit)
	needle := strings.ToLower(query)

	summaries, err := t.Store.List(ctx, projectName(stringArg(args, "project_dir")))
	if err != nil {
		return nil, err
	}

	var hits []historyHit
	for _, s := range summaries {
		key := session.Key{Project: s.Project, Tool: s.Tool, SessionID: s.SessionID}
		history, ok, err := t.Store.GetHistory(ctx, key)
		if err != nil || !ok {
			continue
		}
		for _, msg := range history.Chat {
			if !strings.Contains(strings.ToLower(msg.Content), needle) {
				continue
			}
			hits = append(hits, historyHit{
				Tool:      s.Tool,
				SessionID: s.SessionID,
				Role:      string(msg.Role),
				Snippet:   snippet(msg.Content, needle),
			})
			if len(hits) >= limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

func snippet(content, lowerNeedle string) string {
	idx := strings.Index(strings.ToLower(content), lowerNeedle)
	if idx < 0 {
		return truncateRunes(content, 200)
	}
	start := idx - 80
	if start < 0 {
		start = 0
	}
	end := idx + len(lowerNeedle) + 80
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const taskFileSearchCapBytes = 1 << 20 // 1 MiB: content is scanned in memory, not streamed

// fileHit is one match returned by TaskFilesSearch.
type fileHit struct {
	Path        string `json:"path"`
	MatchedName bool   `json:"matched_name"`
}

// TaskFilesSearch implements the task_files_search fixed tool: it walks the
// project the way the context builder does (internal/gather's .gitignore
// aware text-file walk) and returns files whose full path or content
// contains query, compared case-insensitively.
type TaskFilesSearch struct{}

func (t *TaskFilesSearch) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	projectDir := stringArg(args, "project_dir")
	query := stringArg(args, "query")
	if projectDir == "" || query == "" {
		return nil, errs.New(errs.InvalidParameter, "task_files_search requires project_dir and query")
	}
	limit := intArg(args, "limit", 50)
	needle := strings.ToLower(query)

	files, err := gather.Gather(projectDir, []string{projectDir}, gather.Options{})
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, err, "gather %s", projectDir)
	}

	var hits []fileHit
	for _, f := range files {
		matchedName := strings.Contains(strings.ToLower(f.Path), needle)
		matchedContent := false
		if !matchedName && f.Size <= taskFileSearchCapBytes {
			data, err := os.ReadFile(f.Path)
			if err == nil && strings.Contains(strings.ToLower(string(data)), needle) {
				matchedContent = true
			}
		}
		if matchedName || matchedContent {
			hits = append(hits, fileHit{Path: f.Path, MatchedName: matchedName})
			if len(hits) >= limit {
				break
			}
		}
	}
	return hits, nil
}
