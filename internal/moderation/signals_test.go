package moderation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilsmp/warden/internal/moderation"
)

func TestCheckMassMentions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		mentions     int
		roleMentions int
		maxMentions  int
		wantFlag     bool
	}{
		{
			name:        "no mentions",
			maxMentions: 5,
		},
		{
			name:        "exactly at limit is clean",
			mentions:    5,
			maxMentions: 5,
		},
		{
			name:        "one over the limit",
			mentions:    6,
			maxMentions: 5,
			wantFlag:    true,
		},
		{
			name:         "user and role mentions combine",
			mentions:     3,
			roleMentions: 3,
			maxMentions:  5,
			wantFlag:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := moderation.Message{
				Content:          "hey everyone",
				MentionCount:     tt.mentions,
				RoleMentionCount: tt.roleMentions,
			}

			det := moderation.CheckMassMentions(msg, tt.maxMentions)
			if !tt.wantFlag {
				assert.Nil(t, det)
				return
			}

			require.NotNil(t, det)
			assert.Equal(t, moderation.CategoryMassMentions, det.Category)
			assert.Equal(t, moderation.SeverityWarn, det.Severity)
		})
	}
}

func TestCheckEmojiDensity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		maxPercent float64
		wantFlag   bool
	}{
		{
			name:       "empty message skipped",
			content:    "",
			maxPercent: 40,
		},
		{
			name:       "mostly text",
			content:    "hello there 😀",
			maxPercent: 40,
		},
		{
			name:       "unicode emoji flood",
			content:    "😀😀😀 hi",
			maxPercent: 40,
			wantFlag:   true,
		},
		{
			name:       "custom emoji flood",
			content:    "<:pepe:123456789> <:pepe:123456789>",
			maxPercent: 40,
			wantFlag:   true,
		},
		{
			name:       "animated custom emoji counted",
			content:    "<a:party:987654321> ok",
			maxPercent: 40,
			wantFlag:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			det := moderation.CheckEmojiDensity(moderation.Message{Content: tt.content}, tt.maxPercent)
			if !tt.wantFlag {
				assert.Nil(t, det)
				return
			}

			require.NotNil(t, det)
			assert.Equal(t, moderation.CategoryEmojiSpam, det.Category)
		})
	}
}

func TestCheckExcessiveCaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		maxPercent float64
		wantFlag   bool
	}{
		{
			name:       "short shouting is tolerated",
			content:    "LOL OK!",
			maxPercent: 70,
		},
		{
			name:       "long shouting is flagged",
			content:    "STOP SHOUTING AT EVERYONE",
			maxPercent: 70,
			wantFlag:   true,
		},
		{
			name:       "normal sentence",
			content:    "This is a normal sentence.",
			maxPercent: 70,
		},
		{
			name:       "no letters at all",
			content:    "1234567890 !!!",
			maxPercent: 70,
		},
		{
			name:       "exactly at limit is clean",
			content:    "AAAAAAAbbb",
			maxPercent: 70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			det := moderation.CheckExcessiveCaps(moderation.Message{Content: tt.content}, tt.maxPercent)
			if !tt.wantFlag {
				assert.Nil(t, det)
				return
			}

			require.NotNil(t, det)
			assert.Equal(t, moderation.CategoryCapsSpam, det.Category)
		})
	}
}
