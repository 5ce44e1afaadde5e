package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/querycache/internal/config"
	"github.com/unkn0wn-root/querycache/internal/devserver"
	"github.com/unkn0wn-root/querycache/site"
)

func backend(t *testing.T) string {
	t.Helper()
	st, err := devserver.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ds := devserver.New(st)
	err = ds.Seed(context.Background(), []devserver.BlogRequest{{
		Title:    "Net metering explained",
		Excerpt:  "How export credits work",
		Content:  strings.Repeat("kilowatt hour ", 5),
		ImageURL: "/img/meter.png",
		Category: "guides",
	}}, nil)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	srv := httptest.NewServer(ds.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func testConfig(t *testing.T, url string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.BaseURL = url
	cfg.Namespace = "test"
	cfg.RetryMax = 0
	return cfg
}

func TestNewServesReads(t *testing.T) {
	url := backend(t)
	cases := []struct{ logger, provider, codec string }{
		{"slog", "none", "json"},
		{"zap", "ristretto", "cbor"},
		{"logrus", "bigcache", "msgpack"},
		{"zap", "bigcache", "proto"},
	}
	for _, tc := range cases {
		t.Run(tc.logger+"/"+tc.provider, func(t *testing.T) {
			cfg := testConfig(t, url)
			cfg.Logger, cfg.Provider, cfg.Codec = tc.logger, tc.provider, tc.codec

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			var out bytes.Buffer
			a, err := New(ctx, cfg, &out)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			page, err := a.Site.BlogList(ctx, site.BlogListParams{})
			if err != nil {
				t.Fatalf("BlogList: %v", err)
			}
			if len(page.Items) != 1 || page.Items[0].Title != "Net metering explained" {
				t.Fatalf("page = %+v", page)
			}
			if err := a.Close(ctx); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := a.Close(ctx); err != nil {
				t.Fatalf("second Close: %v", err)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Codec = "yaml"
	cfg.Provider = "ristretto"
	if _, err := New(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unknown codec error")
	}

	cfg = testConfig(t, "http://127.0.0.1:1")
	cfg.GenStore = "redis"
	if _, err := New(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected missing redis url error")
	}
}

func TestNewWithRedis(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	cfg := testConfig(t, backend(t))
	cfg.Provider, cfg.GenStore, cfg.RedisURL = "redis", "redis", redisURL
	cfg.Namespace = "test:" + t.Name()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := New(ctx, cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(ctx)
	if _, err := a.Site.BlogList(ctx, site.BlogListParams{}); err != nil {
		t.Fatalf("BlogList: %v", err)
	}
}
