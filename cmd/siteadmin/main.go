// Package main runs one siteadmin command against the site backend.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/querycache/internal/cmd/siteadmin"
)

func main() {
	cfg, err := siteadmin.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := siteadmin.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, siteadmin.ErrUsage) {
			os.Exit(2)
		}
		log.Fatalf("siteadmin: %v", err)
	}
}
