package moderation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/moderation"
	"github.com/devilsmp/warden/internal/setup/config"
)

var errStoreDown = errors.New("store down")

// fakeWindow is a WindowCounter returning a fixed count, an error, or a
// panic, and remembering how often it was asked.
type fakeWindow struct {
	mu     sync.Mutex
	count  int
	err    error
	panics bool
	calls  int
}

func (w *fakeWindow) Record(_ context.Context, _ moderation.Scope, _ string, _ time.Time) (int, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()

	if w.panics {
		panic("window store exploded")
	}
	return w.count, w.err
}

func (w *fakeWindow) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// fakeLedger counts warnings in memory starting from a primed total.
type fakeLedger struct {
	mu         sync.Mutex
	count      int
	err        error
	categories []string
}

func (l *fakeLedger) Add(_ context.Context, _, _ uint64, category, _ string) (int, error) {
	if l.err != nil {
		return 0, l.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.categories = append(l.categories, category)
	return l.count, nil
}

func (l *fakeLedger) added() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.categories...)
}

// fakeExecutor records every requested action.
type fakeExecutor struct {
	mu             sync.Mutex
	deletes        []uint64
	sent           []string
	timeouts       []time.Duration
	rolesAdded     []uint64
	rolesRemoved   []uint64
	audits         []moderation.AuditEntry
	failRemoveRole bool
	nextMessageID  uint64
}

func (e *fakeExecutor) DeleteMessage(_ context.Context, _, messageID uint64, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deletes = append(e.deletes, messageID)
	return nil
}

func (e *fakeExecutor) SendChannelMessage(_ context.Context, _ uint64, content string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, content)
	e.nextMessageID++
	return e.nextMessageID, nil
}

func (e *fakeExecutor) Timeout(_ context.Context, _, _ uint64, duration time.Duration, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeouts = append(e.timeouts, duration)
	return nil
}

func (e *fakeExecutor) RemoveTimeout(context.Context, uint64, uint64, string) error {
	return nil
}

func (e *fakeExecutor) AddRole(_ context.Context, _, _, roleID uint64, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolesAdded = append(e.rolesAdded, roleID)
	return nil
}

func (e *fakeExecutor) RemoveRole(_ context.Context, _, _, roleID uint64, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failRemoveRole {
		return errStoreDown
	}
	e.rolesRemoved = append(e.rolesRemoved, roleID)
	return nil
}

func (e *fakeExecutor) SendDirectMessage(context.Context, uint64, string) error {
	return nil
}

func (e *fakeExecutor) AuditLog(_ context.Context, entry moderation.AuditEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audits = append(e.audits, entry)
}

// executorState is a race-free copy of the executor's recorded actions.
type executorState struct {
	deletes      []uint64
	sent         []string
	timeouts     []time.Duration
	rolesAdded   []uint64
	rolesRemoved []uint64
	audits       []moderation.AuditEntry
}

func (e *fakeExecutor) snapshot() executorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return executorState{
		deletes:      append([]uint64(nil), e.deletes...),
		sent:         append([]string(nil), e.sent...),
		timeouts:     append([]time.Duration(nil), e.timeouts...),
		rolesAdded:   append([]uint64(nil), e.rolesAdded...),
		rolesRemoved: append([]uint64(nil), e.rolesRemoved...),
		audits:       append([]moderation.AuditEntry(nil), e.audits...),
	}
}

type pipelineFixture struct {
	pipeline *moderation.Pipeline
	exec     *fakeExecutor
	ledger   *fakeLedger
	spam     *fakeWindow
	raid     *fakeWindow
}

func setupPipeline(t *testing.T, terms []string) *pipelineFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "curse.txt")
	content := ""
	for _, term := range terms {
		content += term + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	curses, err := config.NewCurseList(path)
	require.NoError(t, err)

	cfg := &config.BotConfig{
		Discord: config.Discord{
			CommandPrefix: "!",
			MemberRoleID:  100,
			DemotedRoleID: 200,
		},
		Moderation: config.Moderation{
			RaidThreshold:   5,
			RaidWindow:      5,
			SpamThreshold:   5,
			SpamWindow:      30,
			MaxMentions:     5,
			MaxEmojiPercent: 40,
			MaxCapsPercent:  70,
		},
	}

	f := &pipelineFixture{
		exec:   &fakeExecutor{},
		ledger: &fakeLedger{},
		spam:   &fakeWindow{count: 1},
		raid:   &fakeWindow{count: 1},
	}
	f.pipeline = moderation.NewPipeline(cfg, curses, f.spam, f.raid, f.ledger, f.exec, 999, zap.NewNop())

	return f
}

func testMessage(content string) moderation.Message {
	return moderation.Message{
		GuildID:   1,
		ChannelID: 2,
		MessageID: 3,
		AuthorID:  42,
		Content:   content,
		SentAt:    time.Now(),
	}
}

func TestPipelineCurseShortCircuit(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.raid.count = 5 // would fire if the raid stage ran

	f.pipeline.Process(t.Context(), testMessage("!badword please"))

	state := f.exec.snapshot()
	assert.Equal(t, []uint64{3}, state.deletes)
	assert.NotEmpty(t, state.sent)
	assert.Equal(t, []string{moderation.CategoryCurse}, f.ledger.added())

	// Detection suppresses every later stage
	assert.Zero(t, f.raid.callCount())
	assert.Zero(t, f.spam.callCount())

	require.Len(t, state.audits, 1)
	assert.Equal(t, "auto_moderation", state.audits[0].ActionType)
	assert.Equal(t, "badword", state.audits[0].Extra["term"])
}

func TestPipelineCurseEscalatesOnSecondWarning(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.ledger.count = 1 // next violation is the second

	f.pipeline.Process(t.Context(), testMessage("!badword again"))

	state := f.exec.snapshot()
	assert.Equal(t, []time.Duration{time.Minute}, state.timeouts)
}

func TestPipelineRaidTimeout(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.raid.count = 5

	f.pipeline.Process(t.Context(), testMessage("!help me"))

	state := f.exec.snapshot()
	assert.Equal(t, []time.Duration{moderation.RaidTimeout}, state.timeouts)

	// Raid bypasses the ledger and suppresses the signal stage
	assert.Empty(t, f.ledger.added())
	assert.Zero(t, f.spam.callCount())

	require.Len(t, state.audits, 1)
	assert.Equal(t, "anti_raid_timeout", state.audits[0].ActionType)
}

func TestPipelineRaidBelowThreshold(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.raid.count = 4

	f.pipeline.Process(t.Context(), testMessage("!help me"))

	state := f.exec.snapshot()
	assert.Empty(t, state.timeouts)
	assert.Equal(t, 1, f.spam.callCount(), "signal stage runs when raid does not fire")
}

func TestPipelineRaidStoreFailureFailsOpen(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.raid.err = errStoreDown

	f.pipeline.Process(t.Context(), testMessage("!help me"))

	state := f.exec.snapshot()
	assert.Empty(t, state.timeouts)
	assert.Equal(t, 1, f.spam.callCount(), "signal stage still runs")
}

func TestPipelineLedgerFailureDegradesToNoEscalation(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.ledger.err = errStoreDown

	f.pipeline.Process(t.Context(), testMessage("!badword again"))

	// The deletion stands even though no escalation happened
	state := f.exec.snapshot()
	assert.Equal(t, []uint64{3}, state.deletes)
	assert.Empty(t, state.timeouts)
	assert.Empty(t, state.rolesAdded)
}

func TestPipelineRoleSwapAtSixthWarning(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.ledger.count = 5 // next violation is the sixth

	f.pipeline.Process(t.Context(), testMessage("!badword again"))

	state := f.exec.snapshot()
	assert.Equal(t, []uint64{100}, state.rolesRemoved)
	assert.Equal(t, []uint64{200}, state.rolesAdded)
	assert.Empty(t, state.timeouts, "successful role swap replaces the timeout")
}

func TestPipelineRoleSwapFallsBackToTimeout(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.ledger.count = 5
	f.exec.failRemoveRole = true

	f.pipeline.Process(t.Context(), testMessage("!badword again"))

	state := f.exec.snapshot()
	assert.Empty(t, state.rolesAdded)
	assert.Equal(t, []time.Duration{3 * time.Hour}, state.timeouts)
}

func TestPipelineMassMentionWarns(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})

	msg := testMessage("hey everyone look at this")
	msg.MentionCount = 6

	f.pipeline.Process(t.Context(), msg)

	assert.Contains(t, f.ledger.added(), moderation.CategoryMassMentions)

	// Warnings never delete the message
	state := f.exec.snapshot()
	assert.Empty(t, state.deletes)
	assert.Empty(t, state.timeouts)
}

func TestPipelineSpamWarnReachesTimeout(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.spam.count = 5   // spam window threshold reached
	f.ledger.count = 4 // next warning is the fifth

	f.pipeline.Process(t.Context(), testMessage("buy cheap stuff now"))

	assert.Equal(t, []string{moderation.CategorySpam}, f.ledger.added())

	state := f.exec.snapshot()
	assert.Equal(t, []time.Duration{2 * time.Hour}, state.timeouts)
}

func TestPipelineDetectorPanicIsolation(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.spam.panics = true

	msg := testMessage("hey everyone look at this")
	msg.MentionCount = 6

	f.pipeline.Process(t.Context(), msg)

	// The panicking spam detector does not take down the mention check
	assert.Contains(t, f.ledger.added(), moderation.CategoryMassMentions)
}

func TestPipelineSkipsBotsAndEmptyMessages(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})

	bot := testMessage("!badword")
	bot.AuthorIsBot = true
	f.pipeline.Process(t.Context(), bot)

	empty := testMessage("")
	f.pipeline.Process(t.Context(), empty)

	noGuild := testMessage("!badword")
	noGuild.GuildID = 0
	f.pipeline.Process(t.Context(), noGuild)

	state := f.exec.snapshot()
	assert.Empty(t, state.deletes)
	assert.Empty(t, state.sent)
	assert.Empty(t, f.ledger.added())
	assert.Zero(t, f.spam.callCount())
	assert.Zero(t, f.raid.callCount())
}

func TestPipelineNonPrefixedSkipsCurseAndRaid(t *testing.T) {
	t.Parallel()

	f := setupPipeline(t, []string{"badword"})
	f.raid.count = 5

	f.pipeline.Process(t.Context(), testMessage("just a normal badword mention"))

	// Curse and raid stages only apply to command-prefixed messages
	state := f.exec.snapshot()
	assert.Empty(t, state.deletes)
	assert.Empty(t, state.timeouts)
	assert.Zero(t, f.raid.callCount())
	assert.Equal(t, 1, f.spam.callCount())
}
