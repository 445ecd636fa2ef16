// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore implements the gateway's vector-store contract
// (create / upload / search / delete) over Weaviate, in two modes:
// ephemeral (one store per call, deleted afterward) and session-scoped
// (reused across a session's turns via a reuse registry).
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/lukacf/forcegate/internal/errs"
)

// File is one input to Create: the vector store indexes its content.
type File struct {
	Path    string
	Content string
}

// Manager implements the E contract. All stores used in a given session are
// tracked in-memory so GetAllForSession can report every store, not only the
// most recent.
type Manager struct {
	client *weaviate.Client

	mu                sync.Mutex
	sessionStores     map[string][]string        // session_id -> vs_ids
	sessionFileHashes map[string]map[string]bool // vs_id -> content hash -> present
}

// New constructs a Manager over an already-configured Weaviate client.
func New(client *weaviate.Client) *Manager {
	return &Manager{
		client:            client,
		sessionStores:     make(map[string][]string),
		sessionFileHashes: make(map[string]map[string]bool),
	}
}

// className derives a Weaviate class name for a vector-store id. Weaviate
// class names must start with an uppercase letter.
func className(vsID string) string {
	return "Vs" + vsID
}

// Create builds a new vector store from files. When sessionID is non-empty
// and a store already exists for that session, files are uploaded into the
// existing store instead (session-scoped reuse mode); otherwise a fresh
// ephemeral store is created.
func (m *Manager) Create(ctx context.Context, files []File, sessionID string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}

	if sessionID != "" {
		if existing := m.existingStoreFor(sessionID); existing != "" {
			if err := m.uploadNew(ctx, existing, files); err != nil {
				return "", err
			}
			return existing, nil
		}
	}

	vsID := uuid.NewString()
	cls := className(vsID)
	if err := m.createClass(ctx, cls); err != nil {
		return "", err
	}
	if err := m.uploadNew(ctx, vsID, files); err != nil {
		return "", err
	}

	if sessionID != "" {
		m.mu.Lock()
		m.sessionStores[sessionID] = append(m.sessionStores[sessionID], vsID)
		m.mu.Unlock()
	}
	return vsID, nil
}

func (m *Manager) existingStoreFor(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	stores := m.sessionStores[sessionID]
	if len(stores) == 0 {
		return ""
	}
	return stores[len(stores)-1]
}

func (m *Manager) createClass(ctx context.Context, cls string) error {
	err := m.client.Schema().ClassCreator().
		WithClass(&weaviate.Class{Class: cls, Vectorizer: "none"}).
		Do(ctx)
	if err != nil {
		return errs.Wrap(errs.BackendUnavailable, err, "create vector store class %s", cls)
	}
	return nil
}

// uploadNew adds files not already present (by content hash) to cls,
// making Create idempotent on file identity under concurrent calls.
func (m *Manager) uploadNew(ctx context.Context, vsID string, files []File) error {
	cls := className(vsID)

	m.mu.Lock()
	seen, ok := m.sessionFileHashes[vsID]
	if !ok {
		seen = make(map[string]bool)
		m.sessionFileHashes[vsID] = seen
	}
	var toAdd []File
	for _, f := range files {
		h := contentHash(f.Content)
		if seen[h] {
			continue
		}
		seen[h] = true
		toAdd = append(toAdd, f)
	}
	m.mu.Unlock()

	for _, f := range toAdd {
		_, err := m.client.Data().Creator().
			WithClassName(cls).
			WithProperties(map[string]interface{}{
				"path":    f.Path,
				"content": f.Content,
			}).
			Do(ctx)
		if err != nil {
			return errs.Wrap(errs.BackendTransient, err, "upload file %s to vector store %s", f.Path, vsID)
		}
	}
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Delete removes a vector store's backing class entirely.
func (m *Manager) Delete(ctx context.Context, vsID string) error {
	if vsID == "" {
		return nil
	}
	err := m.client.Schema().ClassDeleter().WithClassName(className(vsID)).Do(ctx)
	if err != nil {
		return errs.Wrap(errs.BackendTransient, err, "delete vector store %s", vsID)
	}

	m.mu.Lock()
	delete(m.sessionFileHashes, vsID)
	for sid, stores := range m.sessionStores {
		m.sessionStores[sid] = removeString(stores, vsID)
		if len(m.sessionStores[sid]) == 0 {
			delete(m.sessionStores, sid)
		}
	}
	m.mu.Unlock()
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// GetAllForSession returns every vs_id ever created for sessionID.
func (m *Manager) GetAllForSession(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sessionStores[sessionID]...)
}

// Search performs a BM25 keyword search over a vector store's content,
// returning matching file paths.
func (m *Manager) Search(ctx context.Context, vsID, query string, limit int) ([]string, error) {
	cls := className(vsID)
	result, err := m.client.GraphQL().Get().
		WithClassName(cls).
		WithBM25(m.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithFields(graphql.Field{Name: "path"}).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.BackendTransient, err, "search vector store %s", vsID)
	}
	return extractPaths(result, cls), nil
}

func extractPaths(result *graphql.GraphQLResponse, cls string) []string {
	if result == nil || result.Data == nil {
		return nil
	}
	get, _ := result.Data["Get"].(map[string]interface{})
	if get == nil {
		return nil
	}
	items, _ := get[cls].([]interface{})
	var paths []string
	for _, it := range items {
		obj, _ := it.(map[string]interface{})
		if obj == nil {
			continue
		}
		if p, ok := obj["path"].(string); ok {
			paths = append(paths, p)
		}
	}
	return paths
}
