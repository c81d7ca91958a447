// Package realtime publishes progress snapshots to a Redis pub/sub channel
// so a live dashboard can follow a run from another process, the same
// publish/subscribe wiring a chat-style SSE bus would use, repurposed from
// fanning out chat events to fanning out stage progress.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/osmscout-go/mapimport/internal/pkg/logger"
	"github.com/osmscout-go/mapimport/internal/progress"
)

// RedisSink publishes every reported progress.Snapshot as JSON on a Redis
// channel. It implements progress.Sink and is meant to be combined with
// other sinks (console, ledger) via progress.MultiSink.
type RedisSink struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisSink dials REDIS_ADDR and returns a Sink publishing to
// REDIS_CHANNEL (default "mapimport:progress"). Returns nil, nil when
// REDIS_ADDR is unset, so callers can treat a live dashboard feed as
// optional ambient infrastructure.
func NewRedisSink(log *logger.Logger) (*RedisSink, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "mapimport:progress"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisSink{
		log:     log.With("service", "RedisProgressSink"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

// Report publishes one snapshot. Publish failures are logged, not returned,
// since progress.Sink.Report has no error channel — a dashboard feed
// dropping a frame must never abort the run it is reporting on.
func (s *RedisSink) Report(snap progress.Snapshot) {
	if s == nil || s.rdb == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("failed to marshal progress snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Publish(ctx, s.channel, raw).Err(); err != nil {
		s.log.Warn("failed to publish progress snapshot", "error", err)
	}
}

// Close releases the underlying Redis client.
func (s *RedisSink) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
