// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"fmt"
	"log/slog"
	"time"
)

// GCRunner periodically runs value-log garbage collection on a DB in the
// background. A database opened with InMemoryConfig has no value log and
// should not be paired with a GCRunner.
type GCRunner struct {
	db       *DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewGCRunner validates its arguments and returns an unstarted runner.
func NewGCRunner(db *DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("badger: db must not be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("badger: interval must be positive")
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("badger: ratio must be between 0 and 1")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins the periodic GC loop in a background goroutine. Calling Start
// more than once has undefined effect; callers should construct one runner
// per database.
func (r *GCRunner) Start() {
	go r.loop()
}

func (r *GCRunner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.db.RunValueLogGC(r.ratio); err != nil {
				r.logger.Debug("value log gc", "error", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// shortly after Start without deadlocking.
func (r *GCRunner) Stop() {
	close(r.stop)
	<-r.done
}
