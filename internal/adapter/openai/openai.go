// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package openai implements the OpenAI-family adapter: chat completions
// with tool calling, over github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/convo"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/session"
)

// maxToolRounds bounds the tool-call loop so a misbehaving model can't spin
// the adapter forever.
const maxToolRounds = 25

var reasoningModels = map[string]bool{
	"o1": true, "o1-mini": true, "o1-preview": true,
	"o3": true, "o3-mini": true, "o4-mini": true,
}

// Adapter talks to the OpenAI chat-completions API. History is persisted in
// Responses-shape (function_call/function_call_output items keyed by
// call_id), mirroring the OpenAI Responses API's own turn representation
// even though requests go out over chat completions.
type Adapter struct {
	client *openai.Client
	model  string
	store  convo.ItemStore
}

// New constructs an adapter for model using apiKey, with store used to
// load/persist Responses-shape session history.
func New(model, apiKey string, store convo.ItemStore) (*Adapter, error) {
	if apiKey == "" {
		return nil, errs.New(errs.InvalidParameter, "openai adapter requires an api key")
	}
	return &Adapter{
		client: openai.NewClient(apiKey),
		model:  model,
		store:  store,
	}, nil
}

func (a *Adapter) ModelName() string { return a.model }

func (a *Adapter) DisplayName() string { return "OpenAI (" + a.model + ")" }

func (a *Adapter) Capabilities() adapter.Capabilities {
	caps := adapter.Capabilities{
		SupportsTools:            true,
		SupportsStreaming:        true,
		SupportsTemperature:      true,
		SupportsStructuredOutput: true,
		SupportsVision:           true,
		SupportsWebSearch:        true,
		ParallelFunctionCalls:    -1,
		MaxContextWindow:         128_000,
		MaxOutputTokens:          16_384,
	}
	if reasoningModels[a.model] {
		caps.SupportsTemperature = false
		caps.SupportsReasoningEffort = true
		caps.DefaultReasoningEffort = "medium"
	}
	return caps
}

// Generate runs the request/tool-call loop to completion, persisting every
// message and tool-call pair to session history as it happens rather than
// batching the whole turn at the end.
func (a *Adapter) Generate(ctx context.Context, prompt string, params map[string]interface{}, callCtx adapter.CallContext, dispatcher adapter.Dispatcher) (adapter.Result, error) {
	project, tool, sid := callCtx.Key()
	key := session.Key{Project: project, Tool: tool, SessionID: sid}

	prior, err := convo.LoadResponses(ctx, a.store, callCtx)
	if err != nil {
		return adapter.Result{}, err
	}

	msgs := fromResponsesItems(prior)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	if err := a.store.AppendResponseMessage(ctx, key, datatypes.RoleUser, []datatypes.ContentPart{{Type: "text", Text: prompt}}); err != nil {
		return adapter.Result{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
	}
	applyParams(&req, params, a.Capabilities())

	caps := a.Capabilities()
	if dispatcher != nil {
		req.Tools = toOpenAITools(dispatcher.GetToolDeclarations(caps, false))
	}

	var usage datatypes.TokenUsage
	var lastID string

	for round := 0; ; round++ {
		if round >= maxToolRounds {
			return adapter.Result{}, errs.New(errs.ToolExecutionFailed, "exceeded %d tool-call rounds", maxToolRounds)
		}
		if err := ctx.Err(); err != nil {
			return adapter.Result{}, err
		}

		req.Messages = msgs
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return adapter.Result{}, errs.Wrap(classify(err), err, "openai chat completion")
		}
		if len(resp.Choices) == 0 {
			return adapter.Result{}, errs.New(errs.BackendRejected, "openai returned no choices")
		}

		usage.InputTokens += resp.Usage.PromptTokens
		usage.OutputTokens += resp.Usage.CompletionTokens
		lastID = resp.ID

		choice := resp.Choices[0]
		msgs = append(msgs, choice.Message)

		if len(choice.Message.ToolCalls) == 0 {
			if err := a.store.AppendResponseMessage(ctx, key, datatypes.RoleAssistant, []datatypes.ContentPart{{Type: "text", Text: choice.Message.Content}}); err != nil {
				return adapter.Result{}, err
			}
			if err := a.store.SetResponseID(ctx, key, lastID); err != nil {
				return adapter.Result{}, err
			}
			return adapter.Result{Content: choice.Message.Content, ResponseID: lastID, Usage: &usage}, nil
		}

		if dispatcher == nil {
			return adapter.Result{}, errs.New(errs.UnsupportedCapability, "model requested tools but no dispatcher is configured")
		}

		for _, tc := range choice.Message.ToolCalls {
			var args map[string]interface{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					return adapter.Result{}, errs.Wrap(errs.ParseError, err, "decode tool call arguments for %s", tc.Function.Name)
				}
			}
			if err := a.store.AppendFunctionCall(ctx, key, tc.Function.Name, tc.Function.Arguments, tc.ID); err != nil {
				return adapter.Result{}, err
			}
			out, err := dispatcher.Execute(ctx, tc.Function.Name, args, callCtx)
			if err != nil {
				slog.Warn("tool execution failed", "tool", tc.Function.Name, "error", err)
				out = "error: " + err.Error()
			}
			if err := a.store.AppendFunctionOutput(ctx, key, tc.ID, out); err != nil {
				return adapter.Result{}, err
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				ToolCallID: tc.ID,
			})
		}
	}
}

func applyParams(req *openai.ChatCompletionRequest, params map[string]interface{}, caps adapter.Capabilities) {
	if caps.SupportsTemperature {
		if t, ok := params["temperature"].(float64); ok {
			req.Temperature = float32(t)
		}
	}
	if mt, ok := params["max_tokens"].(float64); ok {
		req.MaxCompletionTokens = int(mt)
	}
	if caps.SupportsReasoningEffort {
		if re, ok := params["reasoning_effort"].(string); ok {
			req.ReasoningEffort = re
		}
	}
}

// fromResponsesItems rebuilds the chat-completions message list a
// Responses-shape history implies, so a resumed session replays the same
// conversation the model originally saw.
func fromResponsesItems(items []datatypes.ResponsesItem) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(items))
	for _, it := range items {
		switch it.Type {
		case datatypes.ItemMessage:
			out = append(out, openai.ChatCompletionMessage{
				Role:    string(it.Role),
				Content: textOf(it.Content),
			})
		case datatypes.ItemFunctionCall:
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   it.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      it.Name,
						Arguments: it.Arguments,
					},
				}},
			})
		case datatypes.ItemFunctionCallOutput:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    it.Output,
				ToolCallID: it.CallID,
			})
		}
	}
	return out
}

func textOf(parts []datatypes.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func toOpenAITools(decls []adapter.ToolDeclaration) []openai.Tool {
	out := make([]openai.Tool, 0, len(decls))
	for _, d := range decls {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema,
			},
		})
	}
	return out
}

func classify(err error) errs.Kind {
	var apiErr *openai.APIError
	if asAPIError(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return errs.BackendTransient
		case 400, 401, 403, 404, 422:
			return errs.BackendRejected
		case 500, 502, 503, 504:
			return errs.BackendTransient
		}
	}
	return errs.BackendUnavailable
}

func asAPIError(err error, target **openai.APIError) bool {
	return errors.As(err, target)
}
