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
	"regexp"
	"strings"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/compactor"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/executor"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

// ConsultationService implements the consult_with LocalService: it
// normalizes a model name to an internal chat_with_* tool and routes the
// call through the ordinary executor path, injecting compacted cross-tool
// history the same way work_with does but without any subprocess resume.
type ConsultationService struct {
	tools     *toolregistry.Registry
	exec      *executor.Executor
	sessions  *session.Store
	compactor *compactor.Compactor
}

// NewConsultationService constructs a consult_with service.
func NewConsultationService(tools *toolregistry.Registry, exec *executor.Executor, sessions *session.Store, compactor *compactor.Compactor) *ConsultationService {
	return &ConsultationService{tools: tools, exec: exec, sessions: sessions, compactor: compactor}
}

var nonAlnumRE = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// resolveModelTool normalizes model (strips dots/dashes, tries a couple of
// casing variants) and looks up the resulting chat_with_<normalized> tool.
func (c *ConsultationService) resolveModelTool(model string) (toolregistry.ToolMetadata, bool) {
	stripped := nonAlnumRE.ReplaceAllString(model, "")
	if stripped == "" {
		return toolregistry.ToolMetadata{}, false
	}
	candidates := []string{
		"chat_with_" + strings.ToUpper(stripped[:1]) + strings.ToLower(stripped[1:]),
		"chat_with_" + stripped,
		"chat_with_" + strings.ToLower(stripped),
	}
	for _, id := range candidates {
		if tool, ok := c.tools.GetTool(id); ok {
			return tool, true
		}
	}
	return toolregistry.ToolMetadata{}, false
}

// Invoke implements toolregistry.LocalService for the consult_with tool.
func (c *ConsultationService) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	model, _ := args["model"].(string)
	question, _ := args["question"].(string)
	sessionID, _ := args["session_id"].(string)
	projectDir, _ := args["project_dir"].(string)
	outputFormat := stringOr(args["output_format"], "")
	fileContext := stringSlice(args["context"])

	if model == "" || question == "" || sessionID == "" {
		return nil, errs.New(errs.InvalidParameter, "consult_with requires model, question, and session_id")
	}

	tool, ok := c.resolveModelTool(model)
	if !ok {
		return nil, errs.New(errs.NotFound, "unknown model %q for consult_with", model)
	}

	projectName := "default"
	if projectDir != "" {
		projectName = filepath.Base(projectDir)
	}
	sessKey := session.Key{Project: projectName, Tool: sharedAgentTool, SessionID: sessionID}

	history, _, err := c.sessions.GetHistory(ctx, sessKey)
	if err != nil {
		return nil, err
	}

	contextInjected := false
	contextSource := ""
	if history.Len() > 0 {
		compacted, err := c.compactor.CompactForCLI(ctx, history)
		if err != nil {
			return nil, err
		}
		if compacted != "" {
			question = fmt.Sprintf("%s\n\nCurrent task: %s", compacted, question)
			contextInjected = true
			contextSource = contextSourceOf(history)
		}
	}

	callCtx := adapter.CallContext{Project: projectDir, Tool: tool.ID, SessionID: sessionID}
	rawParams := map[string]interface{}{"instructions": question}
	if outputFormat != "" {
		rawParams["output_format"] = outputFormat
	}
	if len(fileContext) > 0 {
		rawParams["context"] = fileContext
	}

	result, err := c.exec.Execute(ctx, tool, rawParams, callCtx, projectDir)
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{}
	if contextInjected {
		metadata["context_injected"] = true
		if contextSource != "" {
			metadata["context_source"] = contextSource
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	if err := c.sessions.AppendMessage(ctx, sessKey, datatypes.Message{Role: datatypes.RoleUser, Content: question, Tool: "consult_with"}); err != nil {
		return nil, err
	}
	if err := c.sessions.AppendMessage(ctx, sessKey, datatypes.Message{Role: datatypes.RoleAssistant, Content: result.Content, Tool: "consult_with", Metadata: metadata}); err != nil {
		return nil, err
	}

	return result.Content, nil
}
