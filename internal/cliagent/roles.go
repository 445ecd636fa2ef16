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
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// builtinRoles are the system-prompt prefixes shipped with the gateway.
// Custom roles under <project>/.forcegate/roles/<name>.txt override these.
var builtinRoles = map[string]string{
	"default":      "You are a helpful AI assistant. Cite file paths as `path/to/file:123`, use markdown code blocks, and focus on actionable suggestions.",
	"planner":      "You are a technical architect. Break the task into phases, call out dependencies between components, and consider edge cases and testing strategy.",
	"codereviewer": "You are a senior code reviewer. Focus on correctness, security, and maintainability; suggest concrete improvements rather than restating the code.",
}

// RoleLoader resolves a role name to its system-prompt text, preferring a
// project-local override over the built-in set.
type RoleLoader struct {
	projectDir string
	mu         sync.Mutex
	cache      map[string]string
}

// NewRoleLoader constructs a loader scoped to projectDir (may be empty).
func NewRoleLoader(projectDir string) *RoleLoader {
	return &RoleLoader{projectDir: projectDir, cache: map[string]string{}}
}

// GetRole returns the prompt text for name, falling back to "default" with
// no error if name is unrecognized.
func (l *RoleLoader) GetRole(name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.cache[name]; ok {
		return p
	}

	if l.projectDir != "" {
		path := filepath.Join(l.projectDir, ".forcegate", "roles", name+".txt")
		if data, err := os.ReadFile(path); err == nil {
			prompt := strings.TrimSpace(string(data))
			l.cache[name] = prompt
			return prompt
		}
	}

	if p, ok := builtinRoles[name]; ok {
		l.cache[name] = p
		return p
	}

	return builtinRoles["default"]
}
