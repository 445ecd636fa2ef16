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
	"os/exec"
	"sync"
)

// AvailabilityChecker memoizes PATH lookups for CLI executables so a hot
// loop of work_with calls doesn't stat PATH on every invocation.
type AvailabilityChecker struct {
	mu     sync.Mutex
	lookup func(string) (string, error)
	cache  map[string]bool
}

// NewAvailabilityChecker constructs a checker using os/exec.LookPath.
func NewAvailabilityChecker() *AvailabilityChecker {
	return &AvailabilityChecker{lookup: exec.LookPath, cache: map[string]bool{}}
}

// IsAvailable reports whether executable is resolvable on PATH.
func (c *AvailabilityChecker) IsAvailable(executable string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache[executable]; ok {
		return v
	}
	_, err := c.lookup(executable)
	available := err == nil
	c.cache[executable] = available
	return available
}
