package breaker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/osmscout-go/mapimport/internal/pkg/logger"
)

// RedisBreaker makes IsAborted() visible across processes: an operator can
// publish an abort from a separate control-plane process (internal/control)
// and a running import on another host will observe it within one poll
// interval. It uses the same connect/subscribe/forward shape as
// internal/realtime.RedisSink, repurposed from publishing progress snapshots
// to consuming a single cancellation flag.
type RedisBreaker struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	aborted atomic.Bool
	cancel  context.CancelFunc
}

// NewRedisBreaker connects to addr, subscribes to channel, and starts a
// background forwarder that flips the local aborted flag the moment an
// abort message arrives. The run id is included in published messages so a
// single Redis deployment can back many concurrent imports.
func NewRedisBreaker(ctx context.Context, log *logger.Logger, addr, channel, runID string) (*RedisBreaker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if channel == "" {
		channel = "mapimport:abort"
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis breaker ping: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	b := &RedisBreaker{
		log:     log.With("component", "RedisBreaker", "run_id", runID),
		rdb:     rdb,
		channel: channel,
		cancel:  cancel,
	}

	sub := rdb.Subscribe(subCtx, channel)
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis breaker subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					_ = sub.Close()
					return
				}
				if msg.Payload == runID || msg.Payload == "*" {
					b.aborted.Store(true)
					b.log.Warn("received distributed abort signal")
				}
			}
		}
	}()

	return b, nil
}

// Break flips the local flag only; it publishes nothing to Redis. Other
// processes are aborted through PublishAbort.
func (b *RedisBreaker) Break() {
	b.aborted.Store(true)
}

func (b *RedisBreaker) IsAborted() bool { return b.aborted.Load() }

func (b *RedisBreaker) Reset() { b.aborted.Store(false) }

// PublishAbort is called from the control-plane process (not the running
// import itself) to request cancellation of runID.
func PublishAbort(ctx context.Context, rdb *goredis.Client, channel, runID string) error {
	if channel == "" {
		channel = "mapimport:abort"
	}
	return rdb.Publish(ctx, channel, runID).Err()
}

// Close releases the underlying Redis client and stops the forwarder.
func (b *RedisBreaker) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return b.rdb.Close()
}
