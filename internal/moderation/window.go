package moderation

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Window event categories.
const (
	WindowSpamCheck   = "spam_check"
	WindowRaidMessage = "raid_message"
)

// WindowCounter counts a subject's events inside a sliding time window.
// Record prunes expired events, inserts one for now, and returns the live
// count including the new event. Implementations must make this atomic per
// scope so bursts from the same user never under- or over-count.
type WindowCounter interface {
	Record(ctx context.Context, scope Scope, fingerprint string, now time.Time) (int, error)
}

// recordScript prunes expired events, records the new one and returns the
// live count in a single atomic round trip. Scores are expiry timestamps
// in milliseconds; anything that expired before ARGV[1] is dead.
const recordScript = `
	redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
	return redis.call('ZCARD', KEYS[1])
`

// RedisCounter is a sliding window counter backed by a Redis sorted set
// per (scope, category, fingerprint) tuple.
type RedisCounter struct {
	client   rueidis.Client
	category string
	window   time.Duration
	logger   *zap.Logger
}

// NewRedisCounter creates a counter for one event category with a fixed
// window length.
func NewRedisCounter(client rueidis.Client, category string, window time.Duration, logger *zap.Logger) *RedisCounter {
	return &RedisCounter{
		client:   client,
		category: category,
		window:   window,
		logger:   logger.Named("window_" + category),
	}
}

// Record implements WindowCounter.
func (c *RedisCounter) Record(ctx context.Context, scope Scope, fingerprint string, now time.Time) (int, error) {
	key := c.key(scope, fingerprint)
	nowMs := now.UnixMilli()
	expiresMs := now.Add(c.window).UnixMilli()

	count, err := c.client.Do(ctx, c.client.B().Eval().
		Script(recordScript).
		Numkeys(1).
		Key(key).
		Arg(strconv.FormatInt(nowMs, 10)).
		Arg(strconv.FormatInt(expiresMs, 10)).
		Arg(uuid.NewString()).
		Arg(strconv.FormatInt(c.window.Milliseconds(), 10)).
		Build()).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to record window event: %w", err)
	}

	return int(count), nil
}

// StartSweeper launches an optional background sweep that prunes expired
// events from this category's keys. Prune-on-record already keeps counts
// correct; the sweep only reclaims memory for subjects that went quiet.
func (c *RedisCounter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Sweep(ctx); err != nil {
					c.logger.Warn("Window sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Sweep prunes expired events from every key in this category.
func (c *RedisCounter) Sweep(ctx context.Context) error {
	var cursor uint64
	nowArg := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pattern := fmt.Sprintf("window:%s:*", c.category)

	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().
			Cursor(cursor).
			Match(pattern).
			Count(100).
			Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("failed to scan window keys: %w", err)
		}

		for _, key := range entry.Elements {
			err := c.client.Do(ctx, c.client.B().Zremrangebyscore().
				Key(key).
				Min("-inf").
				Max("("+nowArg).
				Build()).Error()
			if err != nil {
				return fmt.Errorf("failed to prune window key %s: %w", key, err)
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// key builds the sorted set key for a scope. The fingerprint segment is
// omitted for categories that count all messages alike (raid detection).
func (c *RedisCounter) key(scope Scope, fingerprint string) string {
	if fingerprint == "" {
		return fmt.Sprintf("window:%s:%d:%d", c.category, scope.GuildID, scope.UserID)
	}
	return fmt.Sprintf("window:%s:%d:%d:%s", c.category, scope.GuildID, scope.UserID, fingerprint)
}

// Fingerprint hashes case-folded message content for similarity grouping
// in the spam window.
func Fingerprint(content string) string {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(content)))
	return strconv.FormatUint(h.Sum64(), 16)
}
