package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/gochat-relay/internal/server"
)

func main() {
	fmt.Println("Starting relay server...")

	// Environment first, flags override.
	config := server.NewConfigFromEnv()
	flag.StringVar(&config.Addr, "addr", config.Addr, "TCP listen address")
	flag.StringVar(&config.HTTPAddr, "http", config.HTTPAddr, "HTTP/WebSocket listen address (empty disables)")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level: debug, info, warn, error")
	flag.Parse()

	logger := server.NewLogger(config.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(*config, logger).Run(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
