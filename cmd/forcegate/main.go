// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lukacf/forcegate/internal/config"
	"github.com/lukacf/forcegate/internal/telemetry"
	"github.com/lukacf/forcegate/pkg/logging"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var configPath string
var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "forcegate",
	Short: "A multi-provider LLM tool gateway speaking JSON-RPC over stdio",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway, reading JSON-RPC requests from stdin and writing responses to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(logging.Config{Service: "forcegate", JSON: jsonLogs})
		defer logger.Close()

		cfg, err := config.Load(configPath)
		if err != nil {
			logger.Error("load config failed", "error", err)
			return fmt.Errorf("load config: %w", err)
		}
		telemetry.Init(os.Stderr)

		gw, err := buildGateway(cfg)
		if err != nil {
			logger.Error("build gateway failed", "error", err)
			return fmt.Errorf("build gateway: %w", err)
		}
		defer gw.db.Close()

		logger.Info("forcegate serving on stdio", "version", version)
		if err := gw.server.Serve(cmd.Context(), os.Stdin, os.Stdout); err != nil {
			logger.Error("serve stopped", "error", err)
			return err
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Default().Error("forcegate exiting", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional; FORCEGATE_* env vars always apply)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of human-readable text")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
