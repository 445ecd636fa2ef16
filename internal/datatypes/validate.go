// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// MaxMessageContentBytes bounds a single chat-shape message's text content.
const MaxMessageContentBytes = 32 * 1024

// messageValidate is the shared validator instance for Message/History.
var messageValidate *validator.Validate

func init() {
	messageValidate = validator.New()
	_ = messageValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on a string field by byte
// length, not rune count, so a large multi-byte payload can't slip under a
// rune-counted limit.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// Validate checks m against its struct tags.
func (m Message) Validate() error {
	return messageValidate.Struct(m)
}
