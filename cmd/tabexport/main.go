package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/TableExport/internal/export"
)

func main() {
	// The first SIGINT cancels the export; rows already in order are still flushed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, export.ErrCancelled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
