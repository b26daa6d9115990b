package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the broker tools over the Model Context Protocol",
	Long: `mcp exposes the broker tool catalogue to MCP clients, over stdio by
default or over SSE with --transport sse. All clients share one session, so
switching accounts affects every later call.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(ctx, cmd)
		if err != nil {
			return err
		}
		if t, _ := cmd.Flags().GetString("transport"); t != "" {
			cfg.MCP.Transport = t
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.MCP.Addr = addr
			if !cmd.Flags().Changed("base-url") {
				cfg.MCP.BaseURL = "http://localhost" + addr
			}
		}
		if u, _ := cmd.Flags().GetString("base-url"); u != "" {
			cfg.MCP.BaseURL = u
		}

		a := newApp(ctx, cfg)
		srv, err := mcpserver.New(a.toolbox(a.session()), version)
		if err != nil {
			return err
		}

		logger.Info(ctx, "Serving MCP", "transport", cfg.MCP.Transport, "env", string(cfg.Broker.Environment))
		switch cfg.MCP.Transport {
		case "sse":
			return srv.ServeSSE(ctx, cfg.MCP.Addr, cfg.MCP.BaseURL)
		default:
			return srv.ServeStdio()
		}
	},
}

func init() {
	mcpCmd.Flags().String("transport", "", "stdio or sse (overrides mcp.transport)")
	mcpCmd.Flags().String("addr", "", "Listen address for sse (overrides mcp.addr)")
	mcpCmd.Flags().String("base-url", "", "Public base URL for sse (overrides mcp.base_url)")
	rootCmd.AddCommand(mcpCmd)
}
