// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// ClientConfig describes how to reach the Weaviate instance backing the
// vector store.
type ClientConfig struct {
	Host   string
	Scheme string
	APIKey string
}

// NewClient builds a Weaviate client from cfg.
func NewClient(cfg ClientConfig) *weaviate.Client {
	wcfg := weaviate.Config{
		Host:    cfg.Host,
		Scheme:  cfg.Scheme,
		Headers: map[string]string{"X-API-KEY": cfg.APIKey},
	}
	return weaviate.New(wcfg)
}
