// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package localtools implements the fixed-name utility tools that bypass
// the adapter pipeline entirely: session introspection, token counting,
// role/guide lookup, project history search, and the async-job control
// surface. Each type here is a toolregistry.LocalService registered under
// its fixed id by cmd/forcegate, following the same convention as
// internal/cliagent's work_with and consult_with services.
package localtools

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lukacf/forcegate/internal/cliagent"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/gather"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/tokens"
)

func projectName(projectDir string) string {
	if projectDir == "" {
		return ""
	}
	return filepath.Base(projectDir)
}

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func stringSliceArg(args map[string]interface{}, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ListSessions implements the list_sessions fixed tool.
type ListSessions struct {
	Store *session.Store
}

func (t *ListSessions) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	summaries, err := t.Store.List(ctx, projectName(stringArg(args, "project_dir")))
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// DescribeSession implements the describe_session fixed tool.
type DescribeSession struct {
	Store *session.Store
}

func (t *DescribeSession) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := stringArg(args, "session_id")
	if sessionID == "" {
		return nil, errs.New(errs.InvalidParameter, "describe_session requires session_id")
	}
	toolName := stringArg(args, "tool")
	if toolName == "" {
		toolName = "work_with"
	}
	key := session.Key{Project: projectName(stringArg(args, "project_dir")), Tool: toolName, SessionID: sessionID}
	rec, ok, err := t.Store.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.NotFound, "no session %v", key)
	}
	return rec, nil
}

// CountProjectTokens implements the count_project_tokens fixed tool. It
// uses the fast byte-length estimator rather than reading and tokenizing
// every file, since callers use this to gauge context pressure cheaply
// before deciding what to inline.
type CountProjectTokens struct{}

// FileTokenCount is one file's share of a CountProjectTokens result.
type FileTokenCount struct {
	Path   string `json:"path"`
	Tokens int    `json:"tokens"`
}

// TokenCountResult is the value returned by CountProjectTokens.
type TokenCountResult struct {
	TotalTokens int              `json:"total_tokens"`
	FileCount   int              `json:"file_count"`
	Files       []FileTokenCount `json:"files"`
}

func (t *CountProjectTokens) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	projectDir := stringArg(args, "project_dir")
	if projectDir == "" {
		return nil, errs.New(errs.InvalidParameter, "count_project_tokens requires project_dir")
	}
	paths := stringSliceArg(args, "paths")
	if len(paths) == 0 {
		paths = []string{projectDir}
	}

	files, err := gather.Gather(projectDir, paths, gather.Options{})
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, err, "gather %s", projectDir)
	}

	result := TokenCountResult{FileCount: len(files), Files: make([]FileTokenCount, 0, len(files))}
	for _, f := range files {
		n := tokens.EstimateBytesFast(f.Size)
		result.TotalTokens += n
		result.Files = append(result.Files, FileTokenCount{Path: f.Path, Tokens: n})
	}
	return result, nil
}

// GetInstructions implements the get_instructions fixed tool: it returns
// the system-prompt text for a named role, reusing cliagent's role loader
// so project overrides under .forcegate/roles apply identically here.
type GetInstructions struct{}

func (t *GetInstructions) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	role := stringArg(args, "role")
	if role == "" {
		role = "default"
	}
	loader := cliagent.NewRoleLoader(stringArg(args, "project_dir"))
	return loader.GetRole(role), nil
}

// guidesDir returns <projectDir>/.forcegate/guides.
func guidesDir(projectDir string) string {
	return filepath.Join(projectDir, ".forcegate", "guides")
}

// ListForceGuides implements the list_force_guides fixed tool: it lists the
// markdown guide names available under a project's .forcegate/guides
// directory, beside the .forcegate/roles directory role overrides use.
type ListForceGuides struct{}

func (t *ListForceGuides) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	projectDir := stringArg(args, "project_dir")
	if projectDir == "" {
		return nil, errs.New(errs.InvalidParameter, "list_force_guides requires project_dir")
	}
	entries, err := os.ReadDir(guidesDir(projectDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errs.Wrap(errs.StorageError, err, "list guides for %s", projectDir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names, nil
}

// ReadForceGuide implements the read_force_guide fixed tool.
type ReadForceGuide struct{}

func (t *ReadForceGuide) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	projectDir := stringArg(args, "project_dir")
	name := stringArg(args, "name")
	if projectDir == "" || name == "" {
		return nil, errs.New(errs.InvalidParameter, "read_force_guide requires project_dir and name")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, errs.New(errs.InvalidParameter, "guide name %q is not a bare file name", name)
	}
	data, err := os.ReadFile(filepath.Join(guidesDir(projectDir), name+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.NotFound, "no guide %q for %s", name, projectDir)
		}
		return nil, errs.Wrap(errs.StorageError, err, "read guide %q", name)
	}
	return string(data), nil
}
