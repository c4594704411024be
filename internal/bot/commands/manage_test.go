package commands

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilsmp/warden/internal/database/types"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "30s", want: 30 * time.Second},
		{input: "10m", want: 10 * time.Minute},
		{input: "2h", want: 2 * time.Hour},
		{input: "1d", want: 24 * time.Hour},
		{input: "1w", want: 7 * 24 * time.Hour},
		{input: "s", wantErr: true},
		{input: "10", wantErr: true},
		{input: "10x", wantErr: true},
		{input: "-5m", wantErr: true},
		{input: "0m", wantErr: true},
		{input: "m10", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := parseDuration(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoryLines(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	t.Run("filters to the target user", func(t *testing.T) {
		t.Parallel()

		logs := []*types.AuditLog{
			{UserID: 1, ActionType: types.ActionTypeAutoModeration, Reason: "Banned word detected: badword (Warning 2)", CreatedAt: at},
			{UserID: 2, ActionType: types.ActionTypeManualTimeout, Reason: "Manual timeout by moderator", CreatedAt: at},
			{UserID: 1, ActionType: types.ActionTypeAntiRaidTimeout, Reason: "Anti-raid protection - 5 messages in 5 seconds", CreatedAt: at},
		}

		lines := historyLines(logs, 1)
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "auto_moderation")
		assert.Contains(t, lines[0], "2026-08-30 14:05")
		assert.Contains(t, lines[1], "anti_raid_timeout")
	})

	t.Run("caps the number of rendered entries", func(t *testing.T) {
		t.Parallel()

		logs := make([]*types.AuditLog, 0, historyDisplayLimit*2)
		for i := 0; i < historyDisplayLimit*2; i++ {
			logs = append(logs, &types.AuditLog{
				UserID:     1,
				ActionType: types.ActionTypeAutoModeration,
				Reason:     fmt.Sprintf("Warning %d", i),
				CreatedAt:  at,
			})
		}

		assert.Len(t, historyLines(logs, 1), historyDisplayLimit)
	})

	t.Run("no entries for the target", func(t *testing.T) {
		t.Parallel()

		logs := []*types.AuditLog{
			{UserID: 2, ActionType: types.ActionTypeManualTimeout, CreatedAt: at},
		}

		assert.Empty(t, historyLines(logs, 1))
	})
}

func TestSplitSubcommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantSub  string
		wantRest []string
	}{
		{
			name:    "plain subcommand",
			args:    []string{"warnings"},
			wantSub: "warnings",
		},
		{
			name:     "mention token skipped",
			args:     []string{"<@123456>", "timeout", "10m"},
			wantSub:  "timeout",
			wantRest: []string{"10m"},
		},
		{
			name:     "nickname mention skipped",
			args:     []string{"<@!123456>", "timeout", "10m"},
			wantSub:  "timeout",
			wantRest: []string{"10m"},
		},
		{
			name:    "subcommand is case folded",
			args:    []string{"WARNINGS"},
			wantSub: "warnings",
		},
		{
			name: "only mentions",
			args: []string{"<@123456>"},
		},
		{
			name: "no args",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sub, rest := splitSubcommand(tt.args)
			assert.Equal(t, tt.wantSub, sub)
			if len(tt.wantRest) == 0 {
				assert.Empty(t, rest)
			} else {
				assert.Equal(t, tt.wantRest, rest)
			}
		})
	}
}
