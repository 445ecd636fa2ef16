// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rpcserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forcectx "github.com/lukacf/forcegate/internal/context"
	"github.com/lukacf/forcegate/internal/executor"
	"github.com/lukacf/forcegate/internal/params"
	"github.com/lukacf/forcegate/internal/rpcserver"
	"github.com/lukacf/forcegate/internal/session"
	"github.com/lukacf/forcegate/internal/storage/badger"
	"github.com/lukacf/forcegate/internal/toolregistry"
)

type echoService struct{}

func (echoService) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	return "echo:" + args["text"].(string), nil
}

func newTestServer(t *testing.T) *rpcserver.Server {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := session.New(db)

	tools := toolregistry.NewRegistry()
	require.NoError(t, tools.RegisterFixed("echo", toolregistry.ToolMetadata{
		Description:  "echoes its text parameter",
		LocalService: echoService{},
		Parameters:   []toolregistry.ParameterInfo{{Name: "text", Route: toolregistry.RoutePrompt, Required: true}},
	}))

	exec := executor.New(nil, forcectx.New(store), nil, nil, params.StrictMode)
	return rpcserver.New(tools, exec)
}

func TestServer_ToolsList(t *testing.T) {
	srv := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resp rpcserver.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	assert.Nil(t, resp.Error)
}

func TestServer_ToolsCall_Succeeds(t *testing.T) {
	srv := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resp rpcserver.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.Nil(t, resp.Error)
	assert.Equal(t, "echo:hi", resp.Result)
}

func TestServer_ToolsCall_UnknownToolReturnsMethodNotFound(t *testing.T) {
	srv := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"no-such-tool","arguments":{}}}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resp rpcserver.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcserver.CodeMethodNotFound, resp.Error.Code)
}

func TestServer_MalformedLineProducesParseErrorAndContinues(t *testing.T) {
	srv := newTestServer(t)
	in := strings.NewReader("not json\n" + `{"jsonrpc":"2.0","id":4,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Serve(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first rpcserver.Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NotNil(t, first.Error)
	assert.Equal(t, rpcserver.CodeParseError, first.Error.Code)
}

func TestServer_NotificationProducesNoResponse(t *testing.T) {
	srv := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"tools/list"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Serve(context.Background(), in, &out))
	assert.Empty(t, strings.TrimSpace(out.String()))
}

func TestServer_RespectsCancellation(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	err := srv.Serve(ctx, in, &out)
	require.Error(t, err)
}
