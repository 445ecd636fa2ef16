// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tokens estimates token counts for text, trading precision for
// speed on inputs where a precise BPE encode would be pathologically slow.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the fast-path characters-per-token ratio.
const CharsPerToken = 3.5

// BytesPerToken is the fast-path bytes-per-token ratio, used when only a
// byte length is known (e.g. for binary-adjacent attachments).
const BytesPerToken = 2.0

// preciseCharCap bypasses precise encoding above this many characters.
const preciseCharCap = 250_000

// diversityFloor bypasses precise encoding when the distinct-character ratio
// falls below this for inputs at or above diversityMinLen, to avoid
// pathological BPE merge blowup on highly repetitive text.
const diversityFloor = 0.15
const diversityMinLen = 10_000

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoder() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// EstimateFast approximates a token count from the character (rune) count
// alone, without encoding. Linear in len(s) for the rune count.
func EstimateFast(s string) int {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	est := int(float64(n)/CharsPerToken + 0.999)
	if est < 1 {
		est = 1
	}
	return est
}

// EstimateBytesFast approximates a token count from a byte length, for
// callers that only know a file's size on disk.
func EstimateBytesFast(nBytes int64) int {
	if nBytes <= 0 {
		return 0
	}
	est := int(float64(nBytes)/BytesPerToken + 0.999)
	if est < 1 {
		est = 1
	}
	return est
}

// charDiversity returns the ratio of distinct runes to total runes.
func charDiversity(s string) float64 {
	seen := make(map[rune]struct{})
	n := 0
	for _, r := range s {
		seen[r] = struct{}{}
		n++
	}
	if n == 0 {
		return 1
	}
	return float64(len(seen)) / float64(n)
}

// Estimate returns a precise BPE token count for s, falling back to the fast
// estimate when s is large enough or repetitive enough that precise
// encoding would be disproportionately expensive, or when no encoder is
// available.
func Estimate(s string) int {
	if len([]rune(s)) > preciseCharCap {
		return EstimateFast(s)
	}
	if len(s) >= diversityMinLen && charDiversity(s) < diversityFloor {
		return EstimateFast(s)
	}

	e, err := encoder()
	if err != nil {
		return EstimateFast(s)
	}
	return len(e.Encode(s, nil, nil))
}
