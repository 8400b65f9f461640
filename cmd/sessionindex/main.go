// File path: cmd/sessionindex/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/brettcrane/sessionindex/internal/common"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err == nil {
		logger.Debug("environment loaded from .env")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
