// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads layered gateway configuration: built-in defaults, an
// optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's process-wide configuration.
type Config struct {
	DataDir                   string            `yaml:"data_dir"`
	SessionTTL                time.Duration     `yaml:"session_ttl"`
	CleanupProbability        float64           `yaml:"cleanup_probability"`
	InlineBudgetFrac          float64           `yaml:"inline_budget_fraction"`
	FilePerFileCapBytes       int64             `yaml:"file_per_file_cap_bytes"`
	CompactorBudgetTokens     int               `yaml:"compactor_budget_tokens"`
	CLIAllowlist              []string          `yaml:"cli_allowlist"`
	ProviderAPIKeys           map[string]string `yaml:"-"`
	MockAdapter               bool              `yaml:"mock_adapter"`
	OutputSizeThresholdTokens int               `yaml:"output_size_threshold_tokens"`
	CLIIdleTimeout            time.Duration     `yaml:"cli_idle_timeout"`
	VectorStoreHost           string            `yaml:"vector_store_host"`
	VectorStoreScheme         string            `yaml:"vector_store_scheme"`
	VectorStoreAPIKey         string            `yaml:"-"`
	AsyncJobConcurrency       int               `yaml:"async_job_concurrency"`
}

// Default returns the gateway's built-in defaults.
func Default() Config {
	return Config{
		DataDir:                   "~/.forcegate/data",
		SessionTTL:                90 * 24 * time.Hour,
		CleanupProbability:        0.01,
		InlineBudgetFrac:          0.85,
		FilePerFileCapBytes:       5 * 1024 * 1024,
		CompactorBudgetTokens:     30_000,
		CLIAllowlist:              []string{"claude", "gemini", "codex"},
		ProviderAPIKeys:           map[string]string{},
		OutputSizeThresholdTokens: 2_000,
		CLIIdleTimeout:            2 * time.Minute,
		VectorStoreHost:           "localhost:8080",
		VectorStoreScheme:         "http",
		AsyncJobConcurrency:       4,
	}
}

// Load builds a Config starting from Default, overlaying an optional YAML
// file at path (skipped if path is empty or the file does not exist), then
// applying FORCEGATE_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FORCEGATE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FORCEGATE_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("FORCEGATE_CLEANUP_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CleanupProbability = f
		}
	}
	if v := os.Getenv("FORCEGATE_CLI_ALLOWLIST"); v != "" {
		cfg.CLIAllowlist = strings.Split(v, ",")
	}
	if v := os.Getenv("FORCEGATE_MOCK_ADAPTER"); v != "" {
		cfg.MockAdapter = v == "1" || strings.EqualFold(v, "true")
	}

	for _, provider := range []string{"OPENAI", "ANTHROPIC", "GOOGLE", "XAI"} {
		if v := os.Getenv("FORCEGATE_" + provider + "_API_KEY"); v != "" {
			cfg.ProviderAPIKeys[strings.ToLower(provider)] = v
		}
	}

	if v := os.Getenv("FORCEGATE_VECTOR_STORE_HOST"); v != "" {
		cfg.VectorStoreHost = v
	}
	if v := os.Getenv("FORCEGATE_VECTOR_STORE_SCHEME"); v != "" {
		cfg.VectorStoreScheme = v
	}
	if v := os.Getenv("FORCEGATE_VECTOR_STORE_API_KEY"); v != "" {
		cfg.VectorStoreAPIKey = v
	}
	if v := os.Getenv("FORCEGATE_ASYNC_JOB_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AsyncJobConcurrency = n
		}
	}
}

// Validate rejects configurations the rest of the gateway could not operate
// under.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.CleanupProbability < 0 || c.CleanupProbability > 1 {
		return fmt.Errorf("config: cleanup_probability must be in [0,1]")
	}
	if c.InlineBudgetFrac <= 0 || c.InlineBudgetFrac > 1 {
		return fmt.Errorf("config: inline_budget_fraction must be in (0,1]")
	}
	if c.CompactorBudgetTokens <= 0 {
		return fmt.Errorf("config: compactor_budget_tokens must be positive")
	}
	return nil
}

// ExpandDataDir expands a leading ~ in DataDir to the user's home directory.
func (c Config) ExpandDataDir() (string, error) {
	if !strings.HasPrefix(c.DataDir, "~") {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return home + strings.TrimPrefix(c.DataDir, "~"), nil
}
