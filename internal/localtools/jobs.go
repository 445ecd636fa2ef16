// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package localtools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lukacf/forcegate/internal/asyncjob"
	"github.com/lukacf/forcegate/internal/errs"
)

const defaultMaxRuntime = 10 * time.Minute

// StartJob implements the start_job fixed tool: it enqueues another tool
// call to run in the background and returns immediately with a job id.
type StartJob struct {
	Manager *asyncjob.Manager
}

func (t *StartJob) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetTool := stringArg(args, "tool")
	if targetTool == "" {
		return nil, errs.New(errs.InvalidParameter, "start_job requires tool")
	}
	innerArgs, _ := args["args"].(map[string]interface{})
	raw, err := json.Marshal(innerArgs)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidParameter, err, "marshal args for job target %q", targetTool)
	}
	maxRuntime := defaultMaxRuntime
	if s := intArg(args, "max_runtime_s", 0); s > 0 {
		maxRuntime = time.Duration(s) * time.Second
	}

	jobID, err := t.Manager.StartJob(ctx, targetTool, raw, maxRuntime)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"job_id": jobID}, nil
}

// PollJob implements the poll_job fixed tool.
type PollJob struct {
	Manager *asyncjob.Manager
}

func (t *PollJob) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	jobID := stringArg(args, "job_id")
	if jobID == "" {
		return nil, errs.New(errs.InvalidParameter, "poll_job requires job_id")
	}
	return t.Manager.PollJob(ctx, jobID)
}

// CancelJob implements the cancel_job fixed tool.
type CancelJob struct {
	Manager *asyncjob.Manager
}

func (t *CancelJob) Invoke(_ context.Context, args map[string]interface{}) (interface{}, error) {
	jobID := stringArg(args, "job_id")
	if jobID == "" {
		return nil, errs.New(errs.InvalidParameter, "cancel_job requires job_id")
	}
	if err := t.Manager.CancelJob(jobID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": "cancelled"}, nil
}
