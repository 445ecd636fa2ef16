// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package asyncjob runs long tool calls in the background against a
// bounded worker pool, persisting JobRecords so status survives process
// restarts and is never reported succeeded before the result is durable.
package asyncjob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badgerlib "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lukacf/forcegate/internal/errs"
	"github.com/lukacf/forcegate/internal/storage/badger"
)

// Status is a JobRecord's lifecycle stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is the durable async job record.
type Record struct {
	JobID      string          `json:"job_id"`
	TargetTool string          `json:"target_tool"`
	Args       json.RawMessage `json:"args"`
	Status     Status          `json:"status"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	MaxRuntime time.Duration   `json:"max_runtime"`
}

func jobKey(jobID string) []byte {
	return []byte(fmt.Sprintf("job:%s", jobID))
}

// Runner executes one (targetTool, args) pair against the executor under
// the given deadline and returns its content or an error.
type Runner func(ctx context.Context, targetTool string, args json.RawMessage) (string, error)

// Manager owns the bounded worker pool and the job table.
type Manager struct {
	db     *badger.DB
	run    Runner
	sem    chan struct{}
	now    func() time.Time
	cancel sync.Map // jobID -> context.CancelFunc
}

// New constructs a Manager with maxConcurrent workers drawing from run.
func New(db *badger.DB, run Runner, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Manager{
		db:  db,
		run: run,
		sem: make(chan struct{}, maxConcurrent),
		now: time.Now,
	}
}

// StartJob enqueues a job and returns its id immediately; the job runs in
// the background bounded by the worker pool's capacity.
func (m *Manager) StartJob(ctx context.Context, targetTool string, args json.RawMessage, maxRuntime time.Duration) (string, error) {
	jobID := uuid.NewString()
	rec := Record{
		JobID:      jobID,
		TargetTool: targetTool,
		Args:       args,
		Status:     StatusPending,
		StartedAt:  m.now().Unix(),
		MaxRuntime: maxRuntime,
	}
	if err := m.put(rec); err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel.Store(jobID, cancel)

	go m.work(jobCtx, rec)

	return jobID, nil
}

func (m *Manager) work(ctx context.Context, rec Record) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.finish(rec, StatusCancelled, "", "cancelled before a worker slot became free")
		return
	}
	defer func() { <-m.sem }()
	defer m.cancel.Delete(rec.JobID)

	rec.Status = StatusRunning
	if err := m.put(rec); err != nil {
		slog.Warn("failed to persist running status", "job_id", rec.JobID, "error", err)
	}

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if rec.MaxRuntime > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, rec.MaxRuntime)
		defer cancelTimeout()
	}

	content, err := m.run(runCtx, rec.TargetTool, rec.Args)
	switch {
	case err != nil && runCtx.Err() == context.Canceled:
		m.finish(rec, StatusCancelled, "", err.Error())
	case err != nil:
		m.finish(rec, StatusFailed, "", err.Error())
	default:
		m.finish(rec, StatusSucceeded, content, "")
	}
}

func (m *Manager) finish(rec Record, status Status, result, errMsg string) {
	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.FinishedAt = m.now().Unix()
	if err := m.put(rec); err != nil {
		slog.Error("failed to persist job completion", "job_id", rec.JobID, "error", err)
	}
}

// PollJob returns the current state of a job.
func (m *Manager) PollJob(ctx context.Context, jobID string) (Record, error) {
	var rec Record
	err := m.db.WithReadTxn(ctx, func(txn *badgerlib.Txn) error {
		item, err := txn.Get(jobKey(jobID))
		if err != nil {
			if err == badgerlib.ErrKeyNotFound {
				return errs.New(errs.NotFound, "job %s not found", jobID)
			}
			return errs.Wrap(errs.StorageError, err, "get job %s", jobID)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// CancelJob cooperatively cancels a running or pending job.
func (m *Manager) CancelJob(jobID string) error {
	v, ok := m.cancel.Load(jobID)
	if !ok {
		return errs.New(errs.NotFound, "job %s is not running", jobID)
	}
	v.(context.CancelFunc)()
	return nil
}

func (m *Manager) put(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.ParseError, err, "marshal job record")
	}
	return m.db.WithTxn(context.Background(), func(txn *badgerlib.Txn) error {
		return txn.Set(jobKey(rec.JobID), raw)
	})
}
