// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llmsloop runs the request/tool-call loop shared by every adapter
// built on langchaingo's llms.Model interface (Anthropic, Google), so each
// provider package only supplies the model construction and capability set.
package llmsloop

import (
	"context"
	"encoding/json"

	"github.com/tmc/langchaingo/llms"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/convo"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
)

const maxToolRounds = 25

// Run drives model through prompt, dispatching any tool calls it requests
// via dispatcher, and persists the resulting turn through store.
func Run(ctx context.Context, model llms.Model, store convo.Loader, prompt string, params map[string]interface{}, callCtx adapter.CallContext, dispatcher adapter.Dispatcher, caps adapter.Capabilities) (adapter.Result, error) {
	prior, err := convo.LoadChat(ctx, store, callCtx)
	if err != nil {
		return adapter.Result{}, err
	}

	msgs := toLLMS(prior)
	msgs = append(msgs, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
	})
	turn := []datatypes.Message{{Role: datatypes.RoleUser, Content: prompt}}

	opts := toCallOptions(params, caps)
	if dispatcher != nil {
		opts = append(opts, llms.WithTools(toLLMSTools(dispatcher.GetToolDeclarations(caps, false))))
	}

	var usage datatypes.TokenUsage

	for round := 0; ; round++ {
		if round >= maxToolRounds {
			return adapter.Result{}, errs.New(errs.ToolExecutionFailed, "exceeded %d tool-call rounds", maxToolRounds)
		}
		if err := ctx.Err(); err != nil {
			return adapter.Result{}, err
		}

		resp, err := model.GenerateContent(ctx, msgs, opts...)
		if err != nil {
			return adapter.Result{}, errs.Wrap(errs.BackendUnavailable, err, "generate content")
		}
		if len(resp.Choices) == 0 {
			return adapter.Result{}, errs.New(errs.BackendRejected, "model returned no choices")
		}
		choice := resp.Choices[0]

		if in, ok := choice.GenerationInfo["InputTokens"].(int); ok {
			usage.InputTokens += in
		}
		if out, ok := choice.GenerationInfo["OutputTokens"].(int); ok {
			usage.OutputTokens += out
		}

		if len(choice.ToolCalls) == 0 {
			turn = append(turn, datatypes.Message{Role: datatypes.RoleAssistant, Content: choice.Content})
			if err := convo.PersistChat(ctx, store, callCtx, turn, ""); err != nil {
				return adapter.Result{}, err
			}
			return adapter.Result{Content: choice.Content, Usage: &usage}, nil
		}

		if dispatcher == nil {
			return adapter.Result{}, errs.New(errs.UnsupportedCapability, "model requested tools but no dispatcher is configured")
		}

		assistantParts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		msgs = append(msgs, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: assistantParts})

		var toolResults []llms.ContentPart
		for _, tc := range choice.ToolCalls {
			var args map[string]interface{}
			if tc.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
					return adapter.Result{}, errs.Wrap(errs.ParseError, err, "decode tool call arguments for %s", tc.FunctionCall.Name)
				}
			}
			out, err := dispatcher.Execute(ctx, tc.FunctionCall.Name, args, callCtx)
			if err != nil {
				out = "error: " + err.Error()
			}
			toolResults = append(toolResults, llms.ToolCallResponse{
				ToolCallID: tc.ID,
				Name:       tc.FunctionCall.Name,
				Content:    out,
			})
		}
		msgs = append(msgs, llms.MessageContent{Role: llms.ChatMessageTypeTool, Parts: toolResults})
	}
}

func toCallOptions(params map[string]interface{}, caps adapter.Capabilities) []llms.CallOption {
	var opts []llms.CallOption
	if caps.SupportsTemperature {
		if t, ok := params["temperature"].(float64); ok {
			opts = append(opts, llms.WithTemperature(t))
		}
	}
	if mt, ok := params["max_tokens"].(float64); ok {
		opts = append(opts, llms.WithMaxTokens(int(mt)))
	}
	return opts
}

func toLLMS(history []datatypes.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		out = append(out, llms.MessageContent{
			Role:  chatRole(m.Role),
			Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}},
		})
	}
	return out
}

func chatRole(r datatypes.Role) llms.ChatMessageType {
	switch r {
	case datatypes.RoleSystem:
		return llms.ChatMessageTypeSystem
	case datatypes.RoleAssistant:
		return llms.ChatMessageTypeAI
	case datatypes.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

func toLLMSTools(decls []adapter.ToolDeclaration) []llms.Tool {
	out := make([]llms.Tool, 0, len(decls))
	for _, d := range decls {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema,
			},
		})
	}
	return out
}
