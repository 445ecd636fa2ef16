// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sanitize strips large base64 image payloads out of conversation
// history before it is persisted, replacing them with a small placeholder
// that preserves mime type and, when known, the original file path.
package sanitize

import (
	"fmt"
	"strings"

	"github.com/lukacf/forcegate/internal/datatypes"
)

const (
	placeholderFmt     = "[image omitted: %s]"
	placeholderFmtPath = "[image omitted: %s, source: %s]"
)

// History returns a sanitized copy of h. The input is never mutated:
// History.Clone() is used before any in-place edit.
func History(h datatypes.History) datatypes.History {
	out := h.Clone()
	for i := range out.Chat {
		out.Chat[i].Parts = sanitizeParts(out.Chat[i].Parts)
	}
	for i := range out.Responses {
		out.Responses[i].Content = sanitizeParts(out.Responses[i].Content)
	}
	return out
}

func sanitizeParts(parts []datatypes.ContentPart) []datatypes.ContentPart {
	if parts == nil {
		return nil
	}
	for i, p := range parts {
		if p.Source != nil {
			parts[i].Source = nil
			parts[i].Type = "text"
			parts[i].Text = placeholder(p.Source.MediaType, p.Path)
			parts[i].Path = ""
			continue
		}
		if p.ImageURL != nil {
			mime := mimeFromDataURL(p.ImageURL.URL)
			parts[i].ImageURL = nil
			parts[i].Type = "text"
			parts[i].Text = placeholder(mime, p.Path)
			parts[i].Path = ""
			continue
		}
		if p.InlineData != nil {
			parts[i].InlineData = nil
			parts[i].Type = "text"
			parts[i].Text = placeholder(p.InlineData.MimeType, p.Path)
			parts[i].Path = ""
			continue
		}
	}
	return parts
}

func placeholder(mime, path string) string {
	if path != "" {
		return fmt.Sprintf(placeholderFmtPath, mime, path)
	}
	return fmt.Sprintf(placeholderFmt, mime)
}

// mimeFromDataURL extracts the mime type from a "data:<mime>;base64,..." URL,
// returning "unknown" if the shape doesn't match.
func mimeFromDataURL(url string) string {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "unknown"
	}
	rest := url[len(prefix):]
	if idx := strings.IndexByte(rest, ';'); idx >= 0 {
		return rest[:idx]
	}
	if idx := strings.IndexByte(rest, ','); idx >= 0 {
		return rest[:idx]
	}
	return "unknown"
}

// Idempotent reports whether sanitizing an already-sanitized history is a
// no-op — used by tests to verify the property from SPEC_FULL.md §8.3.
func Idempotent(h datatypes.History) bool {
	once := History(h)
	twice := History(once)
	return historiesEqual(once, twice)
}

func historiesEqual(a, b datatypes.History) bool {
	if a.Format != b.Format || len(a.Chat) != len(b.Chat) || len(a.Responses) != len(b.Responses) {
		return false
	}
	for i := range a.Chat {
		if a.Chat[i].Content != b.Chat[i].Content || len(a.Chat[i].Parts) != len(b.Chat[i].Parts) {
			return false
		}
		for j := range a.Chat[i].Parts {
			if a.Chat[i].Parts[j].Text != b.Chat[i].Parts[j].Text {
				return false
			}
		}
	}
	return true
}
