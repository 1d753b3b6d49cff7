package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unred/signal-bridge/internal/logger"
	"github.com/unred/signal-bridge/internal/mcp"
)

const version = "v1.0.0"

// Serves MCP over stdio and relays tool calls to the bridge inspection API.
func main() {
	// stdout carries the protocol
	opts := logger.FromEnv()
	opts.Writer = os.Stderr
	logger.Init(opts)
	log := logger.Named("mcp")

	baseURL := os.Getenv("BRIDGE_API_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8787"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("api", baseURL).Msg("signal MCP server starting")
	srv := mcp.NewServer(mcp.NewClient(baseURL), version)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server error")
	}
}
