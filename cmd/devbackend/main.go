// Package main serves the development REST backend for the site admin.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/querycache/internal/cmd/devbackend"
)

func main() {
	cfg, err := devbackend.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := devbackend.Run(ctx, cfg, logger, nil); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
