// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"time"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/asyncjob"
	"github.com/lukacf/forcegate/internal/cliagent"
	"github.com/lukacf/forcegate/internal/localtools"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

const defaultChatTimeout = 5 * time.Minute
const defaultResearchTimeout = 15 * time.Minute

// modelSpec is one chat or research model a provider family exposes.
type modelSpec struct {
	model         string
	description   string
	contextWindow int
}

// familySpec groups the models one adapter key serves, so its tool
// blueprints are generated uniformly.
type familySpec struct {
	adapterKey string
	chat       []modelSpec
	research   []modelSpec
}

func families() []familySpec {
	return []familySpec{
		{
			adapterKey: "anthropic",
			chat: []modelSpec{
				{"claude-opus-4-5", "Anthropic's most capable Claude model, for hard reasoning and long-horizon tasks", 200_000},
				{"claude-sonnet-4-5", "Anthropic's balanced Claude model for everyday engineering work", 200_000},
				{"claude-haiku-4-5", "Anthropic's fastest Claude model, for cheap high-volume calls", 200_000},
			},
			research: []modelSpec{
				{"claude-opus-4-5", "Research variant of Claude Opus: same model, tuned prompt and budget for open-ended investigation", 200_000},
			},
		},
		{
			adapterKey: "google",
			chat: []modelSpec{
				{"gemini-3-pro", "Google's flagship Gemini model, with a million-token context window", 1_000_000},
				{"gemini-3-flash", "Google's low-latency Gemini model", 1_000_000},
			},
			research: []modelSpec{
				{"gemini-3-pro", "Research variant of Gemini Pro, suited to large-corpus investigation given its context window", 1_000_000},
			},
		},
		{
			adapterKey: "openai",
			chat: []modelSpec{
				{"gpt-5.2", "OpenAI's flagship GPT model", 128_000},
				{"gpt-5.2-mini", "OpenAI's smaller, cheaper GPT model", 128_000},
				{"o4-mini", "OpenAI's compact reasoning model", 128_000},
				{"o3", "OpenAI's deep-reasoning model", 128_000},
				{"o3-mini", "OpenAI's compact variant of the o3 reasoning model", 128_000},
				{"o1", "OpenAI's earlier reasoning model", 128_000},
				{"o1-mini", "OpenAI's compact variant of the o1 reasoning model", 128_000},
			},
			research: []modelSpec{
				{"o3", "Research variant of o3, for multi-step investigation", 128_000},
			},
		},
		{
			adapterKey: "xai",
			chat: []modelSpec{
				{"grok-4", "xAI's flagship Grok model", 131_072},
				{"grok-4-fast", "xAI's low-latency Grok model", 131_072},
			},
		},
	}
}

// chatParameters is the parameter set every chat_with_* tool shares: a
// required instructions block, an optional output format and file context,
// and the adapter-routed knobs gated by capability.
func chatParameters() []toolregistry.ParameterInfo {
	return []toolregistry.ParameterInfo{
		{Name: "instructions", Route: toolregistry.RoutePrompt, Position: 0, Required: true},
		{Name: "output_format", Route: toolregistry.RoutePrompt, Position: 1},
		{Name: "context", Route: toolregistry.RouteVectorStore},
		{Name: "vector_store_ids", Route: toolregistry.RouteVectorStoreIDs},
		{Name: "session_id", Route: toolregistry.RouteSession},
		{Name: "reasoning_effort", Route: toolregistry.RouteAdapter,
			RequiresCapability: func(c adapter.Capabilities) bool { return c.SupportsReasoningEffort }},
		{Name: "temperature", Route: toolregistry.RouteAdapter,
			RequiresCapability: func(c adapter.Capabilities) bool { return c.SupportsTemperature }},
	}
}

// registerModelTools synthesizes chat_with_*/research_with_* blueprints for
// every model in families() and registers them against reg.
func registerModelTools(reg *toolregistry.Registry) error {
	for _, fam := range families() {
		for _, m := range fam.chat {
			bp := toolregistry.ToolBlueprint{
				ModelName:     m.model,
				AdapterKey:    fam.adapterKey,
				Model:         m.model,
				Description:   m.description,
				ToolType:      toolregistry.ToolTypeChat,
				Timeout:       defaultChatTimeout,
				ContextWindow: m.contextWindow,
				Parameters:    chatParameters(),
			}
			if err := reg.Register(bp); err != nil {
				return err
			}
		}
		for _, m := range fam.research {
			bp := toolregistry.ToolBlueprint{
				ModelName:     m.model + "-research",
				AdapterKey:    fam.adapterKey,
				Model:         m.model,
				Description:   m.description,
				ToolType:      toolregistry.ToolTypeResearch,
				Timeout:       defaultResearchTimeout,
				ContextWindow: m.contextWindow,
				Parameters:    chatParameters(),
			}
			if err := reg.Register(bp); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerMockTool adds a single chat_with_Mock tool, used only when the
// gateway is started with config.MockAdapter set (local development and the
// end-to-end smoke test, neither of which carries real provider keys).
func registerMockTool(reg *toolregistry.Registry) error {
	return reg.Register(toolregistry.ToolBlueprint{
		ModelName:     "mock",
		AdapterKey:    "mock",
		Model:         "mock",
		Description:   "Deterministic offline adapter for local development and tests",
		ToolType:      toolregistry.ToolTypeChat,
		Timeout:       defaultChatTimeout,
		ContextWindow: 128_000,
		Parameters:    chatParameters(),
	})
}

// fixedToolDeps bundles the already-constructed components the fixed-name
// utility tools close over.
type fixedToolDeps struct {
	sessions *session.Store
	consult  *cliagent.ConsultationService
	agent    *cliagent.Service
	jobs     *asyncjob.Manager
}

func registerFixedTools(reg *toolregistry.Registry, deps fixedToolDeps) error {
	fixed := map[string]toolregistry.ToolMetadata{
		"work_with": {
			Description:  "Drive a CLI coding agent (Claude Code, Gemini CLI, or Codex CLI) on a task inside a project directory",
			LocalService: deps.agent,
			Parameters: []toolregistry.ParameterInfo{
				{Name: "agent", Route: toolregistry.RouteAdapter, Required: true},
				{Name: "task", Route: toolregistry.RoutePrompt, Required: true},
				{Name: "session_id", Route: toolregistry.RouteSession, Required: true},
				{Name: "role", Route: toolregistry.RouteAdapter},
				{Name: "context", Route: toolregistry.RouteAdapter},
				{Name: "reasoning_effort", Route: toolregistry.RouteAdapter},
				{Name: "cli_flags", Route: toolregistry.RouteAdapter},
				{Name: "timeout", Route: toolregistry.RouteAdapter},
			},
		},
		"consult_with": {
			Description:  "Ask a routed chat model a one-off question, sharing history with work_with",
			LocalService: deps.consult,
			Parameters: []toolregistry.ParameterInfo{
				{Name: "model", Route: toolregistry.RouteAdapter, Required: true},
				{Name: "question", Route: toolregistry.RoutePrompt, Required: true},
				{Name: "session_id", Route: toolregistry.RouteSession, Required: true},
				{Name: "output_format", Route: toolregistry.RouteAdapter},
				{Name: "context", Route: toolregistry.RouteAdapter},
			},
		},
		"list_sessions": {
			Description:  "List non-expired sessions, optionally filtered to one project",
			LocalService: &localtools.ListSessions{Store: deps.sessions},
			Parameters:   []toolregistry.ParameterInfo{},
		},
		"describe_session": {
			Description:  "Return the full turn history of one session",
			LocalService: &localtools.DescribeSession{Store: deps.sessions},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "session_id", Route: toolregistry.RouteAdapter, Required: true},
				{Name: "tool", Route: toolregistry.RouteAdapter},
			},
		},
		"count_project_tokens": {
			Description:  "Estimate the total token footprint of a project's files",
			LocalService: &localtools.CountProjectTokens{},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "paths", Route: toolregistry.RouteAdapter},
			},
		},
		"get_instructions": {
			Description:  "Fetch the system-prompt text for a named role",
			LocalService: &localtools.GetInstructions{},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "role", Route: toolregistry.RouteAdapter},
			},
		},
		"list_force_guides": {
			Description:  "List the project-local markdown guides available under .forcegate/guides",
			LocalService: &localtools.ListForceGuides{},
			Parameters:   []toolregistry.ParameterInfo{},
		},
		"read_force_guide": {
			Description:  "Read one project-local guide by name",
			LocalService: &localtools.ReadForceGuide{},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "name", Route: toolregistry.RouteAdapter, Required: true},
			},
		},
		"start_job": {
			Description:  "Start a tool call as a background job and return a job id to poll",
			LocalService: &localtools.StartJob{Manager: deps.jobs},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "tool", Route: toolregistry.RouteAdapter, Required: true},
				{Name: "args", Route: toolregistry.RouteAdapter, Required: true},
				{Name: "max_runtime_s", Route: toolregistry.RouteAdapter},
			},
		},
		"poll_job": {
			Description:  "Poll a background job's status and, once finished, its result",
			LocalService: &localtools.PollJob{Manager: deps.jobs},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "job_id", Route: toolregistry.RouteAdapter, Required: true},
			},
		},
		"cancel_job": {
			Description:  "Cooperatively cancel a running background job",
			LocalService: &localtools.CancelJob{Manager: deps.jobs},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "job_id", Route: toolregistry.RouteAdapter, Required: true},
			},
		},
		"search_project_history": {
			Description:  "Search past session turns for a project by substring",
			LocalService: &localtools.SearchProjectHistory{Store: deps.sessions},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "query", Route: toolregistry.RouteAdapter, Required: true},
				{Name: "limit", Route: toolregistry.RouteAdapter},
			},
		},
		"task_files_search": {
			Description:  "Search a project's files by name or content substring",
			LocalService: &localtools.TaskFilesSearch{},
			Parameters: []toolregistry.ParameterInfo{
				{Name: "query", Route: toolregistry.RouteAdapter, Required: true},
			},
		},
	}

	for id, md := range fixed {
		if err := reg.RegisterFixed(id, md); err != nil {
			return err
		}
	}
	return nil
}
