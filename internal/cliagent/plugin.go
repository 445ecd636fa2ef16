// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cliagent orchestrates interactive AI CLIs (claude, gemini, codex)
// as subprocesses: resolving a model name to a CLI, deciding whether to
// resume a prior CLI session or inject compacted cross-tool context,
// spawning the process, and parsing its output back into a turn.
package cliagent

import "time"

// ParsedOutput is what a Plugin extracts from a CLI's raw stdout.
type ParsedOutput struct {
	Content   string
	SessionID string // CLI-native session id, if the CLI reported one
}

// Plugin adapts one CLI's command-line surface and output format.
type Plugin interface {
	// Name is the CLI's registry key (claude, gemini, codex).
	Name() string
	// Executable is the binary looked up on PATH.
	Executable() string
	// BuildNewSessionArgs constructs the argv (excluding the executable
	// itself) for a fresh session.
	BuildNewSessionArgs(task string, contextDirs []string, role, reasoningEffort string) []string
	// BuildResumeArgs constructs the argv for resuming an existing CLI
	// session.
	BuildResumeArgs(cliSessionID, task, reasoningEffort string) []string
	// ParseOutput extracts content and an optional session id from stdout.
	ParseOutput(stdout string) ParsedOutput
	// ReasoningEnvVars returns environment variables that communicate the
	// requested reasoning effort, or nil if the CLI has no such knob.
	ReasoningEnvVars(reasoningEffort string) map[string]string
}

var registry = map[string]Plugin{}

func register(p Plugin) {
	registry[p.Name()] = p
}

// GetPlugin looks up a registered plugin by CLI name.
func GetPlugin(name string) (Plugin, bool) {
	p, ok := registry[name]
	return p, ok
}

func init() {
	register(claudePlugin{})
	register(geminiPlugin{})
	register(codexPlugin{})
}

// defaultIdleTimeout bounds how long a CLI subprocess may go without
// producing output before it is considered hung.
const defaultIdleTimeout = 2 * time.Minute
