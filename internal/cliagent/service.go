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
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/lukacf/forcegate/internal/compactor"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/storage/badger"
)

const defaultTimeout = 4 * time.Hour

// sharedAgentTool is the session-store Tool bucket shared by work_with and
// consult_with. The two tools hand off a single conversation back and forth
// between a spawned CLI and a routed chat model, so their turns live in one
// bucket rather than two isolated ones; a per-model chat_with_* tool keeps
// its own bucket since its turns are tied to that adapter's own history
// format.
const sharedAgentTool = "work_with"

// Service implements the work_with LocalService: it resolves a model to a
// CLI, decides whether to resume or inject cross-tool context, spawns the
// subprocess, and persists the resulting turn.
type Service struct {
	sessions     *session.Store
	bridge       *SessionBridge
	availability *AvailabilityChecker
	compactor    *compactor.Compactor
	subprocess   *SubprocessExecutor
	cleaner      *OutputCleaner
	files        *OutputFileHandler
	apiKeys      map[string]string
	allowlist    map[string]bool
	roleLoaders  sync.Map // projectDir -> *RoleLoader
}

// NewService constructs a CLI agent service. apiKeys maps provider name
// (anthropic/google/openai) to its API key; allowlist restricts which CLI
// names may be spawned (empty means all registered CLIs are allowed).
func NewService(db *badger.DB, sessions *session.Store, compactor *compactor.Compactor, apiKeys map[string]string, idleTimeout time.Duration, outputThresholdTokens int, allowlist []string) *Service {
	allow := map[string]bool{}
	for _, name := range allowlist {
		allow[name] = true
	}
	return &Service{
		sessions:     sessions,
		bridge:       NewSessionBridge(db),
		availability: NewAvailabilityChecker(),
		compactor:    compactor,
		subprocess:   NewSubprocessExecutor(idleTimeout),
		cleaner:      NewOutputCleaner(outputThresholdTokens),
		files:        NewOutputFileHandler(),
		apiKeys:      apiKeys,
		allowlist:    allow,
	}
}

// Invoke implements toolregistry.LocalService for the work_with tool.
func (s *Service) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	agent, _ := args["agent"].(string)
	task, _ := args["task"].(string)
	sessionID, _ := args["session_id"].(string)
	projectDir, _ := args["project_dir"].(string)
	role := stringOr(args["role"], "default")
	reasoningEffort := stringOr(args["reasoning_effort"], "medium")
	cliFlags := stringSlice(args["cli_flags"])
	extraContext := stringSlice(args["context"])
	timeout := durationOr(args["timeout"], defaultTimeout)

	if agent == "" || task == "" || sessionID == "" {
		return nil, errs.New(errs.InvalidParameter, "work_with requires agent, task, and session_id")
	}

	return s.execute(ctx, agent, task, sessionID, role, reasoningEffort, cliFlags, extraContext, projectDir, timeout)
}

func (s *Service) execute(ctx context.Context, agent, task, sessionID, role, reasoningEffort string, cliFlags, extraContext []string, projectDir string, timeout time.Duration) (string, error) {
	cliName, err := ResolveModelToCLI(agent)
	if err != nil {
		return "", err
	}
	if len(s.allowlist) > 0 && !s.allowlist[cliName] {
		return "", errs.New(errs.BackendUnavailable, "CLI %q is not on the configured allowlist", cliName)
	}
	plugin, ok := GetPlugin(cliName)
	if !ok {
		return "", errs.New(errs.NotFound, "no CLI plugin registered for %q", cliName)
	}
	if !s.availability.IsAvailable(plugin.Executable()) {
		return "", errs.New(errs.BackendUnavailable, "%s is not installed or not on PATH", plugin.Executable())
	}

	projectName := "default"
	if projectDir != "" {
		projectName = filepath.Base(projectDir)
	}

	existingCLISession, hasCLISession, err := s.bridge.GetCLISessionID(ctx, projectName, sessionID, cliName)
	if err != nil {
		return "", err
	}

	sessKey := session.Key{Project: projectName, Tool: sharedAgentTool, SessionID: sessionID}
	history, _, err := s.sessions.GetHistory(ctx, sessKey)
	if err != nil {
		return "", err
	}

	useResume, contextSource := decideResume(history, cliName, hasCLISession)

	contextInjected := false
	if !useResume && history.Len() > 0 {
		compacted, err := s.compactor.CompactForCLI(ctx, history)
		if err != nil {
			return "", err
		}
		if compacted != "" {
			task = fmt.Sprintf("%s\n\nCurrent task: %s", compacted, task)
			contextInjected = true
		}
	}

	if projectDir != "" {
		task = fmt.Sprintf("Work from this directory: %s\n\n%s", projectDir, task)
	}

	var command []string
	if useResume && hasCLISession {
		command = plugin.BuildResumeArgs(existingCLISession, task, reasoningEffort)
	} else {
		contextDirs := extraContext
		if projectDir != "" {
			contextDirs = append([]string{projectDir}, extraContext...)
		}
		command = plugin.BuildNewSessionArgs(task, contextDirs, s.roleLoader(projectDir).GetRole(role), reasoningEffort)
	}
	fullCommand := append([]string{plugin.Executable()}, command...)
	fullCommand = append(fullCommand, cliFlags...)

	env, cleanupEnv, err := buildIsolatedEnv(projectDir, cliName, s.apiKeys)
	if err != nil {
		return "", err
	}
	defer cleanupEnv()
	if reasoningEnv := plugin.ReasoningEnvVars(reasoningEffort); reasoningEnv != nil {
		for k, v := range reasoningEnv {
			env = append(env, k+"="+v)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.subprocess.Run(runCtx, fullCommand, env, projectDir)
	if err != nil {
		return "", errs.Wrap(errs.BackendUnavailable, err, "spawn CLI %s", cliName)
	}

	parsed := plugin.ParseOutput(result.Stdout)
	if parsed.SessionID != "" {
		if err := s.bridge.StoreCLISessionID(ctx, projectName, sessionID, cliName, parsed.SessionID); err != nil {
			return "", err
		}
	}

	rawOutput := parsed.Content
	if rawOutput == "" {
		rawOutput = result.Stdout
	}
	if result.ReturnCode != 0 && result.Stdout == "" && parsed.Content == "" {
		rawOutput = fmt.Sprintf("CLI error (exit code %d):\n%s", result.ReturnCode, result.Stderr)
	}
	if result.TimedOut {
		rawOutput += "\n\n[CLI execution timed out - partial output shown]"
	}
	if result.IdleTimeout {
		rawOutput += "\n\n[CLI process killed due to idle timeout - may be hung]"
	}

	cleaned := s.cleaner.Clean(rawOutput)

	var finalResponse string
	if cleaned.ExceedsThreshold && projectDir != "" {
		outputFile, err := s.files.SaveToFile(projectDir, sessionID, cleaned.Markdown)
		if err != nil {
			return "", err
		}
		summary, err := s.compactor.CompactForCLI(ctx, datatypes.History{
			Format: datatypes.FormatChat,
			Chat:   []datatypes.Message{{Role: datatypes.RoleAssistant, Content: cleaned.Markdown}},
		})
		if err != nil || summary == "" || summary == cleaned.Markdown {
			summary = truncate(cleaned.Markdown, 5000) + "\n\n... (output truncated)"
		}
		finalResponse = s.files.FormatSummaryWithLink(summary, outputFile)
	} else {
		finalResponse = cleaned.Markdown
	}

	metadata := map[string]interface{}{"cli_name": cliName}
	if contextInjected {
		metadata["context_injected"] = true
		if contextSource != "" {
			metadata["context_source"] = contextSource
		}
	}
	if useResume && hasCLISession {
		metadata["used_resume_flag"] = true
		metadata["resumed_from"] = existingCLISession
	}

	if err := s.sessions.AppendMessage(ctx, sessKey, datatypes.Message{Role: datatypes.RoleUser, Content: task, Tool: "work_with"}); err != nil {
		return "", err
	}
	if err := s.sessions.AppendMessage(ctx, sessKey, datatypes.Message{Role: datatypes.RoleAssistant, Content: finalResponse, Tool: "work_with", Metadata: metadata}); err != nil {
		return "", err
	}

	return finalResponse, nil
}

// decideResume implements SPEC_FULL.md §4.12's resume rule: resume only if
// a CLI session is already bound and either history holds no assistant turn
// yet or the last assistant turn is a work_with turn produced by this same
// CLI (or one with no cli_name recorded). Otherwise, if there is history,
// report a context source for the injected-context path.
func decideResume(history datatypes.History, cliName string, hasCLISession bool) (useResume bool, contextSource string) {
	if !hasCLISession {
		return false, contextSourceOf(history)
	}
	if history.Len() == 0 {
		return true, ""
	}

	var lastAssistant *datatypes.Message
	for i := len(history.Chat) - 1; i >= 0; i-- {
		if history.Chat[i].Role == datatypes.RoleAssistant {
			lastAssistant = &history.Chat[i]
			break
		}
	}
	if lastAssistant == nil {
		return true, ""
	}
	if lastAssistant.Tool != "work_with" {
		return false, contextSourceOf(history)
	}
	lastCLI, _ := lastAssistant.Metadata["cli_name"].(string)
	if lastCLI == cliName || lastCLI == "" {
		return true, ""
	}
	return false, contextSourceOf(history)
}

// contextSourceOf reports which tool(s) produced the existing history, for
// the persisted turn's metadata.context_source field.
func contextSourceOf(history datatypes.History) string {
	tools := map[string]bool{}
	for _, m := range history.Chat {
		if m.Tool != "" {
			tools[m.Tool] = true
		}
	}
	if len(tools) == 0 {
		return ""
	}
	if len(tools) > 1 {
		return "mixed"
	}
	for t := range tools {
		return t
	}
	return ""
}

func (s *Service) roleLoader(projectDir string) *RoleLoader {
	if v, ok := s.roleLoaders.Load(projectDir); ok {
		return v.(*RoleLoader)
	}
	loader := NewRoleLoader(projectDir)
	actual, _ := s.roleLoaders.LoadOrStore(projectDir, loader)
	return actual.(*RoleLoader)
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func stringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func durationOr(v interface{}, def time.Duration) time.Duration {
	switch vv := v.(type) {
	case float64:
		return time.Duration(vv) * time.Second
	case int:
		return time.Duration(vv) * time.Second
	default:
		return def
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
