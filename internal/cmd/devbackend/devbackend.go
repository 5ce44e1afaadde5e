// Package devbackend parses devbackend flags and serves the development
// REST backend.
package devbackend

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/unkn0wn-root/querycache/internal/config"
	"github.com/unkn0wn-root/querycache/internal/devserver"
)

const shutdownTimeout = 5 * time.Second

// ParseConfig parses .env, environment and flags into config.DevBackend.
func ParseConfig(fs *flag.FlagSet, args []string) (config.DevBackend, error) {
	var cfg config.DevBackend
	if err := config.LoadDotenv(".env"); err != nil {
		return config.DevBackend{}, err
	}
	if err := config.ParseEnv(&cfg); err != nil {
		return config.DevBackend{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "sqlite database file; empty for in-memory")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "insert sample posts and leads into an empty database")
	if err := fs.Parse(args); err != nil {
		return config.DevBackend{}, err
	}
	return cfg, nil
}

// Run serves until ctx is cancelled. ready, if non-nil, receives the bound
// address once the listener is open.
func Run(ctx context.Context, cfg config.DevBackend, log *slog.Logger, ready func(addr string)) error {
	st, err := devserver.Open(cfg.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	srv := devserver.New(st)
	if cfg.Seed {
		n, err := seedEmpty(ctx, st, srv)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("seeded", "blogs", n)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	log.Info("devbackend listening", "addr", ln.Addr().String(), "dsn", cfg.DSN)
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// seedEmpty inserts the sample data only when no posts exist yet.
func seedEmpty(ctx context.Context, st *devserver.Store, srv *devserver.Server) (int, error) {
	_, total, err := st.ListBlogs(ctx, devserver.BlogQuery{Page: 1, Limit: 1})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return 0, nil
	}
	if err := srv.Seed(ctx, sampleBlogs, sampleLeads); err != nil {
		return 0, err
	}
	return len(sampleBlogs), nil
}

var sampleBlogs = []devserver.BlogRequest{
	{
		Title:    "How net metering cuts your bill",
		Excerpt:  "Export credits explained for homeowners",
		Content:  strings.Repeat("Net metering credits surplus generation against grid imports. ", 3),
		ImageURL: "/images/net-metering.jpg",
		Category: "guides",
	},
	{
		Title:    "Rooftop solar for housing societies",
		Excerpt:  "Shared systems for common-area loads",
		Content:  strings.Repeat("A society plant offsets lifts, pumps and corridor lighting. ", 3),
		ImageURL: "/images/society.jpg",
		Category: "projects",
	},
	{
		Title:    "Subsidy changes this year",
		Excerpt:  "What the revised residential scheme covers",
		Content:  strings.Repeat("The revised scheme raises the capacity cap for homes. ", 3),
		ImageURL: "/images/subsidy.jpg",
		Category: "news",
	},
}

var sampleLeads = []devserver.LeadRequest{
	{Name: "Asha Rao", WhatsappNumber: "+919800000001", ElectricityBill: 3200, City: "Pune", Type: "residential"},
	{Name: "Green Park CHS", WhatsappNumber: "+919800000002", ElectricityBill: 48000, City: "Mumbai", Type: "housing_society"},
	{Name: "Kiran Textiles", WhatsappNumber: "+919800000003", ElectricityBill: 215000, City: "Surat", Type: "commercial"},
}
