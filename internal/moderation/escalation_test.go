package moderation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devilsmp/warden/internal/moderation"
)

func TestTimeoutDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  time.Duration
	}{
		{count: 0, want: 0},
		{count: 1, want: 0},
		{count: 2, want: time.Minute},
		{count: 3, want: 30 * time.Minute},
		{count: 4, want: time.Hour},
		{count: 5, want: 2 * time.Hour},
		{count: 6, want: 3 * time.Hour},
		{count: 20, want: 3 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, moderation.TimeoutDuration(tt.count), "count %d", tt.count)
	}
}

func TestTimeoutDurationIsPureAndMonotonic(t *testing.T) {
	t.Parallel()

	prev := time.Duration(0)
	for count := 0; count <= 10; count++ {
		first := moderation.TimeoutDuration(count)
		second := moderation.TimeoutDuration(count)
		assert.Equal(t, first, second, "repeated calls must agree for count %d", count)
		assert.GreaterOrEqual(t, first, prev, "durations must not decrease at count %d", count)
		prev = first
	}
}

func TestEscalateCurseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		count        int
		wantTimeout  time.Duration
		wantRoleSwap bool
	}{
		{
			name:  "first warning has no penalty",
			count: 1,
		},
		{
			name:        "second warning starts timeouts",
			count:       2,
			wantTimeout: time.Minute,
		},
		{
			name:        "fifth warning",
			count:       5,
			wantTimeout: 2 * time.Hour,
		},
		{
			name:         "sixth warning swaps roles with timeout fallback",
			count:        6,
			wantTimeout:  3 * time.Hour,
			wantRoleSwap: true,
		},
		{
			name:         "far past the demote threshold",
			count:        12,
			wantTimeout:  3 * time.Hour,
			wantRoleSwap: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision := moderation.Escalate(moderation.CategoryCurse, tt.count)
			assert.Equal(t, tt.wantTimeout, decision.Timeout)
			assert.Equal(t, tt.wantRoleSwap, decision.RoleSwap)
		})
	}
}

func TestEscalateOtherCategories(t *testing.T) {
	t.Parallel()

	categories := []string{
		moderation.CategoryMassMentions,
		moderation.CategorySpam,
		moderation.CategoryEmojiSpam,
		moderation.CategoryCapsSpam,
	}

	for _, category := range categories {
		// Counts below five never act, regardless of category specifics.
		for count := 0; count < 5; count++ {
			decision := moderation.Escalate(category, count)
			assert.Zero(t, decision.Timeout, "category %s count %d", category, count)
			assert.False(t, decision.RoleSwap, "category %s count %d", category, count)
		}

		decision := moderation.Escalate(category, 5)
		assert.Equal(t, 2*time.Hour, decision.Timeout, "category %s", category)
		assert.False(t, decision.RoleSwap, "category %s", category)

		// Role swaps are exclusive to the curse category.
		decision = moderation.Escalate(category, 6)
		assert.Equal(t, 3*time.Hour, decision.Timeout, "category %s", category)
		assert.False(t, decision.RoleSwap, "category %s", category)
	}
}
