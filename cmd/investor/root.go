package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "investor",
	Short: "Drive a brokerage account through a tool-calling language model",
	Long: `investor runs a trading strategy whose every decision is asked of a
language model agent. The agent reads and changes the account through a
catalogue of broker tools, which are also available directly from the
command line and over the Model Context Protocol.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initializeSystem(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		shutdownSystem(cmd.Context())
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded into the process environment")
}

// quietCommands write their results to stdout, so logs go to stderr.
var quietCommands = map[string]bool{
	"tool": true, "list": true, "mcp": true, "ticker": true, "parse": true, "plan": true,
}

func initializeSystem(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	logCfg := logger.LoadConfigFromEnv()
	if quietCommands[cmd.Name()] {
		if err := logger.InitWithWriter(logCfg, os.Stderr); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if os.Getenv("TRACE_FILE") == "" && os.Getenv("LOG_TRACING_ENABLED") == "" {
			_ = os.Setenv("LOG_TRACING_ENABLED", "false")
		}
	} else if err := logger.InitWithConfig(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(trace.WithVersion(version), trace.WithWriter(traceWriter(cmd))); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func shutdownSystem(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush traces: %v\n", err)
	}
	_ = logger.Close()
}

// traceWriter keeps spans off stdout for commands whose stdout is data.
func traceWriter(cmd *cobra.Command) io.Writer {
	if quietCommands[cmd.Name()] {
		return os.Stderr
	}
	return os.Stdout
}
