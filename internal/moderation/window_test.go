package moderation_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/moderation"
)

func setupWindowTest(t *testing.T, category string, window time.Duration) *moderation.RedisCounter {
	t.Helper()

	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Create Redis client
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return moderation.NewRedisCounter(client, category, window, zap.NewNop())
}

func TestRedisCounterRecord(t *testing.T) {
	t.Parallel()

	counter := setupWindowTest(t, moderation.WindowSpamCheck, 30*time.Second)
	ctx := t.Context()

	scope := moderation.Scope{GuildID: 1, UserID: 42}
	fingerprint := moderation.Fingerprint("same message")
	start := time.Now()

	// Five rapid events count up to five
	for i := 0; i < 5; i++ {
		count, err := counter.Record(ctx, scope, fingerprint, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}
}

func TestRedisCounterExpiresOldEvents(t *testing.T) {
	t.Parallel()

	counter := setupWindowTest(t, moderation.WindowSpamCheck, 30*time.Second)
	ctx := t.Context()

	scope := moderation.Scope{GuildID: 1, UserID: 42}
	fingerprint := moderation.Fingerprint("same message")
	start := time.Now()

	// Events spaced past the window never accumulate
	for i := 0; i < 5; i++ {
		count, err := counter.Record(ctx, scope, fingerprint, start.Add(time.Duration(i*31)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

func TestRedisCounterScopeIsolation(t *testing.T) {
	t.Parallel()

	counter := setupWindowTest(t, moderation.WindowSpamCheck, 30*time.Second)
	ctx := t.Context()
	now := time.Now()

	fingerprint := moderation.Fingerprint("same message")

	count, err := counter.Record(ctx, moderation.Scope{GuildID: 1, UserID: 42}, fingerprint, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Different user, same guild
	count, err = counter.Record(ctx, moderation.Scope{GuildID: 1, UserID: 43}, fingerprint, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Same user, different guild
	count, err = counter.Record(ctx, moderation.Scope{GuildID: 2, UserID: 42}, fingerprint, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisCounterFingerprintIsolation(t *testing.T) {
	t.Parallel()

	counter := setupWindowTest(t, moderation.WindowSpamCheck, 30*time.Second)
	ctx := t.Context()
	now := time.Now()

	scope := moderation.Scope{GuildID: 1, UserID: 42}

	count, err := counter.Record(ctx, scope, moderation.Fingerprint("first message"), now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Dissimilar content lands in its own window
	count, err = counter.Record(ctx, scope, moderation.Fingerprint("second message"), now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = counter.Record(ctx, scope, moderation.Fingerprint("first message"), now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRedisCounterEmptyFingerprint(t *testing.T) {
	t.Parallel()

	counter := setupWindowTest(t, moderation.WindowRaidMessage, 5*time.Second)
	ctx := t.Context()

	scope := moderation.Scope{GuildID: 1, UserID: 42}
	start := time.Now()

	// Raid counting ignores content entirely
	for i := 0; i < 5; i++ {
		count, err := counter.Record(ctx, scope, "", start)
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}
}

func TestRedisCounterSweep(t *testing.T) {
	t.Parallel()

	counter := setupWindowTest(t, moderation.WindowSpamCheck, 30*time.Second)
	ctx := t.Context()

	scope := moderation.Scope{GuildID: 1, UserID: 42}
	fingerprint := moderation.Fingerprint("same message")

	// Record events that are already expired relative to wall time
	stale := time.Now().Add(-5 * time.Minute)
	for i := 0; i < 3; i++ {
		_, err := counter.Record(ctx, scope, fingerprint, stale)
		require.NoError(t, err)
	}

	require.NoError(t, counter.Sweep(ctx))

	// The next record sees an empty window
	count, err := counter.Record(ctx, scope, fingerprint, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	// Case-folded content shares a fingerprint
	assert.Equal(t, moderation.Fingerprint("Hello World"), moderation.Fingerprint("hello world"))
	assert.Equal(t, moderation.Fingerprint("SPAM SPAM"), moderation.Fingerprint("spam spam"))

	// Different content does not
	assert.NotEqual(t, moderation.Fingerprint("hello world"), moderation.Fingerprint("goodbye world"))
}
