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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lukacf/forcegate/internal/tokens"
)

var ansiEscapeRE = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// CleanedOutput is a CLI's raw stdout reduced to plain markdown, alongside
// the token count used to decide whether it needs summarizing.
type CleanedOutput struct {
	Markdown         string
	EstimatedTokens  int
	ExceedsThreshold bool
}

// OutputCleaner strips terminal control sequences and collapses the
// plugin-parsed content down to plain markdown, then measures it against
// a token threshold.
type OutputCleaner struct {
	thresholdTokens int
}

// NewOutputCleaner constructs a cleaner with the given size threshold.
func NewOutputCleaner(thresholdTokens int) *OutputCleaner {
	return &OutputCleaner{thresholdTokens: thresholdTokens}
}

// Clean removes ANSI escapes and runs of blank lines from raw, then
// classifies the result against the size threshold.
func (c *OutputCleaner) Clean(raw string) CleanedOutput {
	cleaned := ansiEscapeRE.ReplaceAllString(raw, "")
	cleaned = collapseBlankLines(cleaned)
	est := tokens.Estimate(cleaned)
	return CleanedOutput{
		Markdown:         cleaned,
		EstimatedTokens:  est,
		ExceedsThreshold: c.thresholdTokens > 0 && est > c.thresholdTokens,
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// OutputFileHandler persists oversized CLI output under the project's
// .forcegate/outputs directory and formats the summary-plus-link response.
type OutputFileHandler struct {
	now func() time.Time
}

// NewOutputFileHandler constructs a file handler using the real clock.
func NewOutputFileHandler() *OutputFileHandler {
	return &OutputFileHandler{now: time.Now}
}

// SaveToFile writes markdown under <projectDir>/.forcegate/outputs/ and
// returns the path written.
func (h *OutputFileHandler) SaveToFile(projectDir, sessionID, markdown string) (string, error) {
	dir := filepath.Join(projectDir, ".forcegate", "outputs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cliagent: create output dir: %w", err)
	}
	name := fmt.Sprintf("%s-%d.md", sessionID, h.now().UnixNano())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("cliagent: write output file: %w", err)
	}
	return path, nil
}

// FormatSummaryWithLink renders the response shown to the caller when the
// full output was too large to return inline.
func (h *OutputFileHandler) FormatSummaryWithLink(summary, filePath string) string {
	return fmt.Sprintf("%s\n\n[Full output saved to %s]", summary, filePath)
}
