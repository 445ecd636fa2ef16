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
)

// cliAPIKeyVar names the environment variable a given CLI reads its
// provider key from.
var cliAPIKeyVar = map[string]string{
	"claude": "ANTHROPIC_API_KEY",
	"gemini": "GOOGLE_API_KEY",
	"codex":  "OPENAI_API_KEY",
}

// buildIsolatedEnv constructs a minimal process environment for a CLI
// subprocess: PATH and TERM (defaulting to xterm-256color), the
// resolved provider API key, and a per-CLI isolated config/home directory
// so the subprocess never reads (or corrupts) the operator's own CLI
// config. Claude in particular must not inherit the caller's real HOME:
// doing so makes it detect a different "current project" than the
// isolated one the gateway intends (SPEC_FULL.md §4.12).
func buildIsolatedEnv(projectDir, cliName string, apiKeys map[string]string) (env []string, cleanup func(), err error) {
	isolatedHome, err := os.MkdirTemp("", "forcegate-cli-"+cliName+"-")
	if err != nil {
		return nil, nil, fmt.Errorf("cliagent: build isolated home for %s: %w", cliName, err)
	}
	cleanup = func() { _ = os.RemoveAll(isolatedHome) }

	env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + isolatedHome,
		"XDG_CONFIG_HOME=" + isolatedHome + "/.config",
		"TERM=" + envOrDefault("TERM", "xterm-256color"),
	}

	if keyVar, ok := cliAPIKeyVar[cliName]; ok {
		provider := providerForCLI(cliName)
		if key, ok := apiKeys[provider]; ok && key != "" {
			env = append(env, keyVar+"="+key)
		}
	}

	return env, cleanup, nil
}

func providerForCLI(cliName string) string {
	switch cliName {
	case "claude":
		return "anthropic"
	case "gemini":
		return "google"
	case "codex":
		return "openai"
	default:
		return cliName
	}
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
