// Package redis persists query results in Redis so they survive restarts and
// are shared by every replica of the admin tools.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/querycache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Provider stores framed results as plain string values.
type Provider struct {
	rdb  goredis.UniversalClient
	owns bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Client goredis.UniversalClient
	// Owns hands the client over; Close then closes it. Leave false when
	// the client is shared with a RedisGenStore.
	Owns bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Provider{rdb: cfg.Client, owns: cfg.Owns}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

// Set stores without expiry when ttl <= 0. Redis never rejects a write
// under pressure, so ok is true whenever err is nil.
func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, max(ttl, 0)).Err(); err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return true, nil
}

// Del unlinks so large pages are reclaimed off the request path.
func (p *Provider) Del(ctx context.Context, key string) error {
	return p.rdb.Unlink(ctx, key).Err()
}

func (p *Provider) Close(context.Context) error {
	if !p.owns {
		return nil
	}
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
