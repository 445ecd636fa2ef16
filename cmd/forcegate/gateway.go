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
	"context"
	"encoding/json"
	"fmt"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/anthropic"
	"github.com/lukacf/forcegate/internal/adapter/google"
	"github.com/lukacf/forcegate/internal/adapter/mock"
	"github.com/lukacf/forcegate/internal/adapter/openai"
	"github.com/lukacf/forcegate/internal/adapter/xai"
	"github.com/lukacf/forcegate/internal/asyncjob"
	"github.com/lukacf/forcegate/internal/cliagent"
	"github.com/lukacf/forcegate/internal/compactor"
	"github.com/lukacf/forcegate/internal/config"
	forcectx "github.com/lukacf/forcegate/internal/context"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/executor"
	"github.com/lukacf/forcegate/internal/params"
	"github.com/lukacf/forcegate/internal/rpcserver"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/storage/badger"
	"github.com/lukacf/forcegate/internal/toolregistry"
	"github.com/lukacf/forcegate/internal/vectorstore"
)

// gateway bundles every long-lived component main needs to keep a handle to
// (for closing the database on shutdown) alongside the server that drives
// them.
type gateway struct {
	db     *badger.DB
	server *rpcserver.Server
}

// buildGateway constructs the full dependency graph named in SPEC_FULL.md
// section 4: storage, adapters, the tool registry, the executor, the async
// job manager, the CLI agent services, and finally the JSON-RPC server that
// dispatches to all of it.
func buildGateway(cfg config.Config) (*gateway, error) {
	dataDir, err := cfg.ExpandDataDir()
	if err != nil {
		return nil, err
	}

	db, err := badger.OpenWithPath(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sessions := session.New(db, session.WithCleanupProbability(cfg.CleanupProbability))

	adapters := adapter.NewRegistry()
	registerAdapterFactories(adapters, cfg, sessions)

	builder := forcectx.New(sessions)

	vsClient := vectorstore.NewClient(vectorstore.ClientConfig{
		Host:   cfg.VectorStoreHost,
		Scheme: cfg.VectorStoreScheme,
		APIKey: cfg.VectorStoreAPIKey,
	})
	vs := vectorstore.New(vsClient)

	exec := executor.New(adapters, builder, vs, nil, params.StrictMode)

	tools := toolregistry.NewRegistry()
	if cfg.MockAdapter {
		if err := registerMockTool(tools); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := registerModelTools(tools); err != nil {
		db.Close()
		return nil, err
	}

	compactAdapterKey, compactModel := compactorTarget(cfg)
	compactorSvc := compactor.New(adapters, compactAdapterKey, compactModel)

	agentSvc := cliagent.NewService(db, sessions, compactorSvc, cfg.ProviderAPIKeys, cfg.CLIIdleTimeout, cfg.OutputSizeThresholdTokens, cfg.CLIAllowlist)
	consultSvc := cliagent.NewConsultationService(tools, exec, sessions, compactorSvc)

	jobs := asyncjob.New(db, newJobRunner(tools, exec), cfg.AsyncJobConcurrency)

	if err := registerFixedTools(tools, fixedToolDeps{
		sessions: sessions,
		consult:  consultSvc,
		agent:    agentSvc,
		jobs:     jobs,
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &gateway{db: db, server: rpcserver.New(tools, exec)}, nil
}

// compactorTarget picks the adapter key/model the compactor uses to produce
// cross-tool context summaries: the cheapest chat model of whichever family
// has a configured key, falling back to the mock adapter when none does.
func compactorTarget(cfg config.Config) (string, string) {
	switch {
	case cfg.ProviderAPIKeys["anthropic"] != "":
		return "anthropic", "claude-haiku-4-5"
	case cfg.ProviderAPIKeys["openai"] != "":
		return "openai", "gpt-5.2-mini"
	case cfg.ProviderAPIKeys["google"] != "":
		return "google", "gemini-3-flash"
	default:
		return "mock", "mock"
	}
}

func registerAdapterFactories(reg *adapter.Registry, cfg config.Config, sessions *session.Store) {
	reg.RegisterFactory("anthropic", func(model string) (adapter.Adapter, error) {
		return anthropic.New(model, cfg.ProviderAPIKeys["anthropic"], sessions)
	})
	reg.RegisterFactory("openai", func(model string) (adapter.Adapter, error) {
		return openai.New(model, cfg.ProviderAPIKeys["openai"], sessions)
	})
	reg.RegisterFactory("google", func(model string) (adapter.Adapter, error) {
		return google.New(context.Background(), model, cfg.ProviderAPIKeys["google"], sessions)
	})
	reg.RegisterFactory("xai", func(model string) (adapter.Adapter, error) {
		return xai.New(model, cfg.ProviderAPIKeys["xai"], sessions)
	})
	reg.RegisterFactory("mock", func(model string) (adapter.Adapter, error) {
		return mock.New(model)
	})
}

// jobArgs is the subset of a start_job target's args the runner needs to
// rebuild a CallContext; asyncjob.Runner carries no CallContext of its own.
type jobArgs struct {
	ProjectDir string `json:"project_dir"`
	SessionID  string `json:"session_id"`
}

// newJobRunner closes over tools/exec to dispatch a background job through
// the ordinary tool-execution path (J), the same one a synchronous tools/call
// request uses.
func newJobRunner(tools *toolregistry.Registry, exec *executor.Executor) asyncjob.Runner {
	return func(ctx context.Context, targetTool string, args json.RawMessage) (string, error) {
		tool, ok := tools.GetTool(targetTool)
		if !ok {
			return "", errs.New(errs.NotFound, "no tool %q", targetTool)
		}

		var flat map[string]interface{}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &flat); err != nil {
				return "", errs.Wrap(errs.InvalidParameter, err, "decode job args for %q", targetTool)
			}
		}
		var meta jobArgs
		_ = json.Unmarshal(args, &meta)

		callCtx := adapter.CallContext{Project: meta.ProjectDir, Tool: tool.ID, SessionID: meta.SessionID}
		result, err := exec.SafeExecute(ctx, tool, flat, callCtx, meta.ProjectDir)
		if err != nil {
			return "", err
		}
		return result.Content, nil
	}
}
