package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/sagalens/pkg/ingest"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the snapshot history and the effect trees of a monitor as MCP tools.

With a redis history the tools see what a running "sagalens serve" recorded.
A recorded event log can be loaded first with --replay.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		replayPath, _ := cmd.Flags().GetString("replay")

		// Stdout carries JSON-RPC; the configured logger writes to stderr.
		logger := cfg.Logger()

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if replayPath != "" {
			if err := preload(ctx, a, replayPath); err != nil {
				return err
			}
		}

		srv := a.mcpServer()
		switch transport {
		case "stdio":
			logger.Info("starting MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("starting MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		}
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
	},
}

func preload(ctx context.Context, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := ingest.NewPlayer(a.monitor, ingest.WithLogger(a.logger)).Play(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to replay %s: %w", path, err)
	}
	a.logger.Info("event log loaded", "path", path, "events", n)
	return nil
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport to use: stdio or sse")
	mcpCmd.Flags().IntP("port", "p", 8081, "Port for SSE transport")
	mcpCmd.Flags().String("replay", "", "Event log (JSON lines) loaded before serving")
}
