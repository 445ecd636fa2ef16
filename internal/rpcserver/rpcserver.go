// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rpcserver implements a minimal JSON-RPC 2.0 transport over stdio:
// one newline-delimited request per line in, one newline-delimited response
// per line out. Request/response shapes follow the JSON-RPC 2.0 spec
// (https://www.jsonrpc.org/specification), the wire types a host-facing
// tool-call transport in this family already uses for its stdio adapter.
package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/lukacf/forcegate/internal/adapter"
	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/executor"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

// Request is a JSON-RPC 2.0 request object. ID is omitted on notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response object.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard and gateway-specific JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeToolError      = -32001
)

// toolsCallParams is the params shape for a "tools/call" request.
type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Project   string                 `json:"project_dir,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// Server dispatches "tools/list" and "tools/call" JSON-RPC requests against
// a tool registry and executor over an arbitrary reader/writer pair.
type Server struct {
	tools *toolregistry.Registry
	exec  *executor.Executor
}

// New constructs a Server.
func New(tools *toolregistry.Registry, exec *executor.Executor) *Server {
	return &Server{tools: tools, exec: exec}
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// newline-delimited responses to w until r is exhausted or ctx is done.
// Malformed lines produce a parse-error response rather than terminating
// the loop: one bad line from a host should not kill the transport.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := enc.Encode(errorResponse(nil, CodeParseError, "invalid JSON: "+err.Error())); writeErr != nil {
				return writeErr
			}
			continue
		}

		resp := s.handle(ctx, req)
		if req.ID == nil {
			continue // notification: no response expected
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case "tools/list":
		return Response{JSONRPC: "2.0", ID: req.ID, Result: s.listTools()}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "unknown method "+req.Method)
	}
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) listTools() []toolSummary {
	tools := s.tools.ListTools()
	out := make([]toolSummary, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolSummary{Name: t.ID, Description: t.Description})
	}
	return out
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid tools/call params: "+err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "tools/call requires a tool name")
	}

	tool, ok := s.tools.GetTool(params.Name)
	if !ok {
		return errorResponse(req.ID, CodeMethodNotFound, "unknown tool "+params.Name)
	}

	callCtx := adapter.CallContext{Project: params.Project, Tool: tool.ID, SessionID: params.SessionID}
	result, err := s.exec.SafeExecute(ctx, tool, params.Arguments, callCtx, params.Project)
	if err != nil {
		slog.Warn("tool call failed", "tool", tool.ID, "error", err)
		return errorResponse(req.ID, codeFor(err), err.Error())
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result.Content}
}

func codeFor(err error) int {
	switch errs.KindOf(err) {
	case errs.InvalidParameter, errs.UnsupportedCapability:
		return CodeInvalidParams
	case errs.NotFound:
		return CodeMethodNotFound
	default:
		return CodeToolError
	}
}

func errorResponse(id interface{}, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}
