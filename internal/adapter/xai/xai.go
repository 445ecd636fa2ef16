// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package xai implements the Grok-family adapter as a plain REST client
// against xAI's OpenAI-compatible chat-completions endpoint; no example in
// the retrieved pack ships an xAI-specific SDK, so this follows the
// teacher's raw-http pattern (see the Anthropic REST client it's modeled
// after) rather than reaching for an unrelated dependency.
package xai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/adapter/convo"
	"github.com/lukacf/forcegate/internal/datatypes"
	"github.com/lukacf/forcegate/internal/errs"
)

const defaultBaseURL = "https://api.x.ai/v1/chat/completions"

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const maxToolRounds = 25

// Adapter talks to Grok models over xAI's chat-completions endpoint.
type Adapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	store      convo.Loader
}

// New constructs an adapter for model using apiKey.
func New(model, apiKey string, store convo.Loader) (*Adapter, error) {
	if apiKey == "" {
		return nil, errs.New(errs.InvalidParameter, "xai adapter requires an api key")
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		store:      store,
	}, nil
}

func (a *Adapter) ModelName() string { return a.model }

func (a *Adapter) DisplayName() string { return "Grok (" + a.model + ")" }

func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		SupportsTools:         true,
		SupportsTemperature:   true,
		SupportsVision:        true,
		SupportsLiveSearch:    true,
		ParallelFunctionCalls: -1,
		MaxContextWindow:      131_072,
		MaxOutputTokens:       8_192,
	}
}

// Generate runs the request/tool-call loop and persists the resulting turn.
func (a *Adapter) Generate(ctx context.Context, prompt string, params map[string]interface{}, callCtx adapter.CallContext, dispatcher adapter.Dispatcher) (adapter.Result, error) {
	prior, err := convo.LoadChat(ctx, a.store, callCtx)
	if err != nil {
		return adapter.Result{}, err
	}

	msgs := toChatMessages(prior)
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})
	turn := []datatypes.Message{{Role: datatypes.RoleUser, Content: prompt}}

	req := chatRequest{Model: a.model}
	if t, ok := params["temperature"].(float64); ok {
		req.Temperature = &t
	}
	if mt, ok := params["max_tokens"].(float64); ok {
		n := int(mt)
		req.MaxTokens = &n
	}

	caps := a.Capabilities()
	if dispatcher != nil {
		req.Tools = toToolDefs(dispatcher.GetToolDeclarations(caps, false))
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
		resp, err := a.call(ctx, req)
		if err != nil {
			return adapter.Result{}, err
		}
		if resp.Error != nil {
			return adapter.Result{}, errs.New(errs.BackendRejected, "xai error: %s", resp.Error.Message)
		}
		if len(resp.Choices) == 0 {
			return adapter.Result{}, errs.New(errs.BackendRejected, "xai returned no choices")
		}

		usage.InputTokens += resp.Usage.PromptTokens
		usage.OutputTokens += resp.Usage.CompletionTokens
		lastID = resp.ID

		choice := resp.Choices[0]
		msgs = append(msgs, choice.Message)

		if len(choice.Message.ToolCalls) == 0 {
			turn = append(turn, datatypes.Message{Role: datatypes.RoleAssistant, Content: choice.Message.Content})
			if err := convo.PersistChat(ctx, a.store, callCtx, turn, lastID); err != nil {
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
			out, err := dispatcher.Execute(ctx, tc.Function.Name, args, callCtx)
			if err != nil {
				out = "error: " + err.Error()
			}
			msgs = append(msgs, chatMessage{Role: "tool", Content: out, ToolCallID: tc.ID})
		}
	}
}

func (a *Adapter) call(ctx context.Context, reqPayload chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "marshal xai request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, defaultBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.InvalidParameter, err, "build xai request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.BackendTransient, err, "xai request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.BackendTransient, err, "read xai response")
	}

	if resp.StatusCode != http.StatusOK {
		kind := errs.BackendUnavailable
		switch {
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			kind = errs.BackendTransient
		case resp.StatusCode >= 400:
			kind = errs.BackendRejected
		}
		return nil, errs.New(kind, "xai returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "decode xai response")
	}
	return &out, nil
}

func toChatMessages(history []datatypes.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history))
	for _, m := range history {
		out = append(out, chatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func toToolDefs(decls []adapter.ToolDeclaration) []toolDef {
	out := make([]toolDef, 0, len(decls))
	for _, d := range decls {
		out = append(out, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema,
			},
		})
	}
	return out
}
