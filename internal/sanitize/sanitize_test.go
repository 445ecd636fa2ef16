// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukacf/forcegate/internal/datatypes"
)

func sampleHistory() datatypes.History {
	return datatypes.History{
		Format: datatypes.FormatChat,
		Chat: []datatypes.Message{
			{
				Role: datatypes.RoleUser,
				Parts: []datatypes.ContentPart{
					{Type: "text", Text: "look at this"},
					{Type: "image", Source: &datatypes.ImageSourceA{Type: "base64", MediaType: "image/png", Data: "QUJD"}},
					{Type: "image_url", ImageURL: &datatypes.ImageSourceB{URL: "data:image/jpeg;base64,QUJD"}},
					{Type: "inline_data", InlineData: &datatypes.ImageSourceC{MimeType: "image/webp", Data: "QUJD"}},
				},
			},
		},
	}
}

func TestHistory_ReplacesAllThreeImageShapes(t *testing.T) {
	in := sampleHistory()
	out := History(in)

	require.Len(t, out.Chat[0].Parts, 4)
	assert.Equal(t, "look at this", out.Chat[0].Parts[0].Text)
	assert.Equal(t, "[image omitted: image/png]", out.Chat[0].Parts[1].Text)
	assert.Nil(t, out.Chat[0].Parts[1].Source)
	assert.Equal(t, "[image omitted: image/jpeg]", out.Chat[0].Parts[2].Text)
	assert.Nil(t, out.Chat[0].Parts[2].ImageURL)
	assert.Equal(t, "[image omitted: image/webp]", out.Chat[0].Parts[3].Text)
	assert.Nil(t, out.Chat[0].Parts[3].InlineData)
}

func TestHistory_DoesNotMutateCaller(t *testing.T) {
	in := sampleHistory()
	_ = History(in)

	assert.NotNil(t, in.Chat[0].Parts[1].Source, "caller's structure must be untouched")
	assert.Equal(t, "image/png", in.Chat[0].Parts[1].Source.MediaType)
}

func TestIdempotent(t *testing.T) {
	assert.True(t, Idempotent(sampleHistory()))
}
