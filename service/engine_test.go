package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/verigate/adapters/codec"
	"github.com/layer-3/verigate/adapters/store"
	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/internal/testutil"
	"github.com/layer-3/verigate/ports"
)

const fruitBank = 1

type engineFixture struct {
	engine    *Engine
	store     ports.SessionStore
	scheduler *testutil.Scheduler
	events    *testutil.Publisher
	verifier  *Verifier
}

func newEngineFixture(t *testing.T, pick core.ChallengeKind) *engineFixture {
	t.Helper()
	c, err := codec.NewSealed("verigate-secret")
	require.NoError(t, err)

	f := &engineFixture{
		store:     store.NewMemoryStore(),
		scheduler: testutil.NewScheduler(),
		events:    &testutil.Publisher{},
		verifier:  NewVerifier(c),
	}
	f.engine = NewEngine(
		f.store,
		NewIssuer(c, nil),
		testutil.Selector{Pick: pick, Bank: fruitBank},
		f.scheduler,
		f.events,
		DefaultEngineConfig(),
	)
	return f
}

// started creates a session for site alpha and starts its challenge
func (f *engineFixture) started(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	session, err := f.store.Create(ctx, "alpha", core.DefaultSiteConfig("alpha"))
	require.NoError(t, err)

	out, err := f.engine.Start(ctx, session.ID, "test-agent")
	require.NoError(t, err)
	require.Equal(t, core.StateStarted, out.State)
	return session.ID
}

func (f *engineFixture) solved(t *testing.T, id string) bool {
	t.Helper()
	session, ok := f.store.Get(context.Background(), id)
	require.True(t, ok)
	return session.Solved
}

func TestEngine_Start(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)

	id := f.started(t)

	session, ok := f.store.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, core.ChallengeClick, session.Kind)

	out, err := f.engine.Start(ctx, id, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, core.StateStarted, out.State)
	require.NotNil(t, out.Click)
	assert.Equal(t, DefaultClickBanks[fruitBank].Instruction, out.Click.Instruction)
	assert.Equal(t, DefaultClickBanks[fruitBank].Items, out.Click.Items)
	assert.Empty(t, out.Click.Selected)
	assert.False(t, out.Click.SubmitEnabled)
}

func TestEngine_StartHonoursAllowedKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeSlider)

	cfg := core.DefaultSiteConfig("alpha")
	cfg.Challenges = []core.ChallengeKind{core.ChallengePuzzle}
	session, err := f.store.Create(ctx, "alpha", cfg)
	require.NoError(t, err)

	out, err := f.engine.Start(ctx, session.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.ChallengePuzzle, out.Kind)
	require.NotNil(t, out.Puzzle)
	assert.Equal(t, DefaultEngineConfig().PuzzleStart, out.Puzzle.Piece)
}

func TestEngine_SliderCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeSlider)
	id := f.started(t)

	_, err := f.engine.SliderGrab(ctx, id)
	require.NoError(t, err)
	out, err := f.engine.SliderMove(ctx, id, 150, 250)
	require.NoError(t, err)
	assert.False(t, out.Solved)
	assert.InDelta(t, 0.6, out.Slider.Position, 1e-9)

	out, err = f.engine.SliderMove(ctx, id, 240, 250) // 96%
	require.NoError(t, err)
	assert.True(t, out.Solved)
	assert.Equal(t, core.StateSolved, out.State)
	require.NotEmpty(t, out.Token)
	assert.True(t, f.solved(t, id))

	verdict := f.verifier.Verify(out.Token, "alpha")
	require.True(t, verdict.Accepted)
	assert.Equal(t, id, verdict.Claims.SessionID)
	assert.Equal(t, 1, f.events.SolvedCount())
}

func TestEngine_SliderReleaseEarlyResets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeSlider)
	id := f.started(t)

	_, err := f.engine.SliderGrab(ctx, id)
	require.NoError(t, err)
	out, err := f.engine.SliderMove(ctx, id, 200, 250) // 80%
	require.NoError(t, err)
	assert.InDelta(t, 0.8, out.Slider.Position, 1e-9)

	out, err = f.engine.SliderRelease(ctx, id)
	require.NoError(t, err)
	assert.False(t, out.Solved)
	assert.Zero(t, out.Slider.Position)
	assert.Equal(t, core.StateStarted, out.State)
	assert.False(t, f.solved(t, id))

	// moving without a grab is not a drag
	out, err = f.engine.SliderMove(ctx, id, 250, 250)
	require.NoError(t, err)
	assert.False(t, out.Solved)
	assert.Zero(t, out.Slider.Position)
}

func TestEngine_SliderClampsPosition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeSlider)
	id := f.started(t)

	_, err := f.engine.SliderGrab(ctx, id)
	require.NoError(t, err)
	out, err := f.engine.SliderMove(ctx, id, -40, 250)
	require.NoError(t, err)
	assert.Zero(t, out.Slider.Position)

	out, err = f.engine.SliderMove(ctx, id, 1000, 250)
	require.NoError(t, err)
	assert.True(t, out.Solved)
	assert.Equal(t, 1.0, out.Slider.Position)
}

func TestEngine_ClickExactSetCompletesOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	for _, item := range []string{"🍊", "🍇", "🍎", "🍉", "🍌"} {
		_, err := f.engine.ToggleItem(ctx, id, item)
		require.NoError(t, err)
	}

	out, err := f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	assert.True(t, out.Solved)
	assert.NotEmpty(t, out.Token)

	// the UI may fire the same events again; solved is terminal
	out, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	assert.False(t, out.Solved)
	assert.Empty(t, out.Token)
	assert.Equal(t, core.StateSolved, out.State)

	out, err = f.engine.ToggleItem(ctx, id, "🍎")
	require.NoError(t, err)
	assert.False(t, out.Solved)

	assert.Equal(t, 1, f.events.SolvedCount())
}

func TestEngine_ClickMismatchCoolsDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	notified := make(chan string, 1)
	f.engine.OnChange(func(sessionID string) { notified <- sessionID })

	_, err := f.engine.ToggleItem(ctx, id, "🍎")
	require.NoError(t, err)
	out, err := f.engine.ToggleItem(ctx, id, "🍌")
	require.NoError(t, err)
	assert.True(t, out.Click.SubmitEnabled)

	out, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	assert.False(t, out.Solved)
	assert.Equal(t, WrongSelectionMessage, out.Error)
	assert.True(t, out.Click.CoolingDown)
	assert.False(t, out.Click.SubmitEnabled)

	// no toggling or resubmitting while cooling down
	out, err = f.engine.ToggleItem(ctx, id, "🍇")
	require.NoError(t, err)
	assert.Equal(t, []string{"🍎", "🍌"}, out.Click.Selected)
	out, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, out.Error)

	f.scheduler.Advance(ClickCooldown - time.Millisecond)
	p, err := f.engine.Presentation(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Click.CoolingDown)

	f.scheduler.Advance(time.Millisecond)
	assert.Equal(t, id, <-notified)

	p, err = f.engine.Presentation(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.Click.CoolingDown)
	assert.Empty(t, p.Click.Selected)
	assert.Equal(t, core.StateStarted, p.State)
	assert.False(t, f.solved(t, id))
}

func TestEngine_ClickIgnoresUnknownItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	out, err := f.engine.ToggleItem(ctx, id, "🚀")
	require.NoError(t, err)
	assert.Empty(t, out.Click.Selected)

	// submit stays disabled with nothing selected
	out, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, out.Error)
	assert.Zero(t, f.scheduler.Pending())
}

func TestEngine_ClickDeselect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	for _, item := range []string{"🍎", "🥕", "🍌", "🍇", "🍉", "🍊", "🥕"} {
		_, err := f.engine.ToggleItem(ctx, id, item)
		require.NoError(t, err)
	}

	out, err := f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	assert.True(t, out.Solved)
}

func TestEngine_Puzzle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	slot := DefaultEngineConfig().PuzzleSlot

	tests := []struct {
		name   string
		drop   core.Point
		solved bool
	}{
		{"on the slot", slot, true},
		{"within tolerance", core.Point{X: slot.X + 21, Y: slot.Y + 21}, true},
		{"at tolerance", core.Point{X: slot.X + 30, Y: slot.Y}, false},
		{"far away", core.Point{X: 0, Y: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, core.ChallengePuzzle)
			id := f.started(t)

			out, err := f.engine.DropPiece(ctx, id, tt.drop)
			require.NoError(t, err)
			assert.Equal(t, tt.solved, out.Solved)
			assert.Equal(t, tt.solved, f.solved(t, id))
			if tt.solved {
				assert.Equal(t, slot, out.Puzzle.Piece)
			} else {
				assert.Equal(t, DefaultEngineConfig().PuzzleStart, out.Puzzle.Piece)
			}
		})
	}
}

func TestEngine_WrongKindGestureIsIgnored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengePuzzle)
	id := f.started(t)

	_, err := f.engine.SliderGrab(ctx, id)
	require.NoError(t, err)
	out, err := f.engine.SliderMove(ctx, id, 250, 250)
	require.NoError(t, err)

	assert.False(t, out.Solved)
	assert.Equal(t, core.ChallengePuzzle, out.Kind)
}

func TestEngine_IdleSessionIgnoresGestures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengePuzzle)

	session, err := f.store.Create(ctx, "alpha", core.DefaultSiteConfig("alpha"))
	require.NoError(t, err)

	out, err := f.engine.DropPiece(ctx, session.ID, DefaultEngineConfig().PuzzleSlot)
	require.NoError(t, err)
	assert.False(t, out.Solved)
	assert.Equal(t, core.StateIdle, out.State)
}

func TestEngine_ResetSolvedSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengePuzzle)
	id := f.started(t)

	out, err := f.engine.DropPiece(ctx, id, DefaultEngineConfig().PuzzleSlot)
	require.NoError(t, err)
	require.True(t, out.Solved)

	out, err = f.engine.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, out.SessionID)
	assert.Equal(t, core.StateIdle, out.State)
	assert.Empty(t, out.Kind)

	session, ok := f.store.Get(ctx, id)
	require.True(t, ok)
	assert.False(t, session.Solved)
	assert.Empty(t, session.Kind)

	// the session can be solved again
	_, err = f.engine.Start(ctx, id, "")
	require.NoError(t, err)
	out, err = f.engine.DropPiece(ctx, id, DefaultEngineConfig().PuzzleSlot)
	require.NoError(t, err)
	assert.True(t, out.Solved)
	assert.Equal(t, 2, f.events.SolvedCount())
}

func TestEngine_ResetCancelsCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	notified := false
	f.engine.OnChange(func(string) { notified = true })

	_, err := f.engine.ToggleItem(ctx, id, "🍎")
	require.NoError(t, err)
	_, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, f.scheduler.Pending())

	_, err = f.engine.Reset(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, f.scheduler.Pending())

	_, err = f.engine.Start(ctx, id, "")
	require.NoError(t, err)
	_, err = f.engine.ToggleItem(ctx, id, "🍌")
	require.NoError(t, err)

	f.scheduler.Advance(time.Minute)

	p, err := f.engine.Presentation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"🍌"}, p.Click.Selected)
	assert.False(t, notified)
}

func TestEngine_StaleCooldownIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	_, err := f.engine.ToggleItem(ctx, id, "🍎")
	require.NoError(t, err)
	_, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)

	// a callback that already escaped cancellation carries an outdated epoch
	f.engine.rearm(id, 99)

	p, err := f.engine.Presentation(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Click.CoolingDown)
	assert.Equal(t, []string{"🍎"}, p.Click.Selected)
}

func TestEngine_Forget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeClick)
	id := f.started(t)

	_, err := f.engine.ToggleItem(ctx, id, "🍎")
	require.NoError(t, err)
	_, err = f.engine.SubmitSelection(ctx, id)
	require.NoError(t, err)

	f.engine.Forget(id)
	f.store.Delete(ctx, id)

	assert.Zero(t, f.scheduler.Pending())
	_, err = f.engine.Presentation(ctx, id)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestEngine_UnknownSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newEngineFixture(t, core.ChallengeSlider)

	_, err := f.engine.Start(ctx, "vg_missing", "")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, err = f.engine.SliderGrab(ctx, "vg_missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, err = f.engine.Reset(ctx, "vg_missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	f.engine.Forget("vg_missing")
}

func TestSelectionMatches(t *testing.T) {
	t.Parallel()
	targets := []string{"🍎", "🍌", "🍇", "🍉", "🍊"}
	set := func(items ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, it := range items {
			m[it] = struct{}{}
		}
		return m
	}

	assert.True(t, selectionMatches(set("🍊", "🍉", "🍇", "🍌", "🍎"), targets))
	assert.False(t, selectionMatches(set("🍎", "🍌"), targets))
	assert.False(t, selectionMatches(set("🍎", "🍌", "🍇", "🍉", "🍊", "🥕"), targets))
	assert.False(t, selectionMatches(set("🍎", "🍌", "🍇", "🍉", "🥕"), targets))
}

func TestSliderComplete(t *testing.T) {
	t.Parallel()
	assert.True(t, sliderComplete(96, 100, SliderThreshold))
	assert.False(t, sliderComplete(80, 100, SliderThreshold))
	assert.False(t, sliderComplete(0, 0, SliderThreshold))
}
