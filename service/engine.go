package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// WrongSelectionMessage is shown after a click submission that does not match the targets
const WrongSelectionMessage = "Wrong selection, please try again"

// Presentation is the renderable state of a session's challenge
type Presentation struct {
	SessionID string              `json:"sessionId"`
	Kind      core.ChallengeKind  `json:"kind,omitempty"`
	State     core.ChallengeState `json:"state"`
	Slider    *SliderView         `json:"slider,omitempty"`
	Click     *ClickView          `json:"click,omitempty"`
	Puzzle    *PuzzleView         `json:"puzzle,omitempty"`
}

// SliderView is the slider challenge state. Position is a share of the usable track.
type SliderView struct {
	Position float64 `json:"position"`
	Grabbed  bool    `json:"grabbed"`
}

// ClickView is the click challenge state
type ClickView struct {
	Instruction   string   `json:"instruction"`
	Items         []string `json:"items"`
	Selected      []string `json:"selected"`
	SubmitEnabled bool     `json:"submitEnabled"`
	CoolingDown   bool     `json:"coolingDown"`
}

// PuzzleView is the puzzle challenge state
type PuzzleView struct {
	Piece core.Point `json:"piece"`
	Slot  core.Point `json:"slot"`
}

// Outcome is the result of feeding one event into the engine
type Outcome struct {
	Presentation
	Solved bool   // set only by the event that completed the challenge
	Token  string // issued token, set together with Solved
	Error  string // recoverable, user facing failure message
}

type challenge struct {
	epoch     uint64
	state     core.ChallengeState
	kind      core.ChallengeKind
	userAgent string

	grabbed  bool
	position float64
	travel   float64

	bank     core.ClickBank
	selected map[string]struct{}
	cooling  bool
	cancel   func()

	piece core.Point
}

// arm clears all gesture progress
func (ch *challenge) arm(cfg EngineConfig) {
	ch.grabbed = false
	ch.position = 0
	ch.travel = 0
	ch.selected = make(map[string]struct{})
	ch.cooling = false
	ch.piece = cfg.PuzzleStart
}

func (ch *challenge) cancelPending() {
	if ch.cancel != nil {
		ch.cancel()
		ch.cancel = nil
	}
	ch.cooling = false
}

// Engine drives each session through Idle -> Started -> Solved.
// The kind specific completion predicate is the only way into Solved, and Solved is terminal until Reset.
type Engine struct {
	store     ports.SessionStore
	issuer    *Issuer
	selector  ports.Selector
	scheduler ports.Scheduler
	events    ports.EventPublisher
	cfg       EngineConfig

	mu         sync.Mutex
	challenges map[string]*challenge
	onChange   func(sessionID string)
}

// NewEngine creates a challenge engine. events may be nil.
func NewEngine(
	store ports.SessionStore,
	issuer *Issuer,
	selector ports.Selector,
	scheduler ports.Scheduler,
	events ports.EventPublisher,
	cfg EngineConfig,
) *Engine {
	if len(cfg.ClickBanks) == 0 {
		cfg.ClickBanks = DefaultClickBanks
	}
	return &Engine{
		store:      store,
		issuer:     issuer,
		selector:   selector,
		scheduler:  scheduler,
		events:     events,
		cfg:        cfg,
		challenges: make(map[string]*challenge),
	}
}

// OnChange registers fn to be called after transitions that happen outside of an event call,
// such as the end of a click cooldown
func (e *Engine) OnChange(fn func(sessionID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// Start picks a challenge for an idle session. Started and solved sessions are returned unchanged.
func (e *Engine) Start(ctx context.Context, sessionID, userAgent string) (Outcome, error) {
	session, ok := e.store.Get(ctx, sessionID)
	if !ok {
		return Outcome{}, core.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ch := e.challenge(sessionID)
	if ch.state != core.StateIdle {
		return Outcome{Presentation: e.present(sessionID, ch)}, nil
	}

	ch.userAgent = userAgent
	ch.kind = e.selector.Kind(session.Config.AllowedKinds())
	ch.state = core.StateStarted
	ch.arm(e.cfg)
	if ch.kind == core.ChallengeClick {
		ch.bank = e.selector.ClickBank(e.cfg.ClickBanks)
	}
	e.store.SetKind(ctx, sessionID, ch.kind)

	return Outcome{Presentation: e.present(sessionID, ch)}, nil
}

// SliderGrab begins a drag gesture on the slider thumb
func (e *Engine) SliderGrab(ctx context.Context, sessionID string) (Outcome, error) {
	return e.gesture(ctx, sessionID, core.ChallengeSlider, func(ch *challenge) (bool, string) {
		ch.grabbed = true
		return false, ""
	})
}

// SliderMove moves the grabbed thumb to x on a track with the given usable travel
func (e *Engine) SliderMove(ctx context.Context, sessionID string, x, travel float64) (Outcome, error) {
	return e.gesture(ctx, sessionID, core.ChallengeSlider, func(ch *challenge) (bool, string) {
		if !ch.grabbed || travel <= 0 {
			return false, ""
		}
		ch.travel = travel
		ch.position = clamp(x, 0, travel)
		return sliderComplete(ch.position, travel, e.cfg.SliderThreshold), ""
	})
}

// SliderRelease ends the drag. An unfinished drag snaps back to the start.
func (e *Engine) SliderRelease(ctx context.Context, sessionID string) (Outcome, error) {
	return e.gesture(ctx, sessionID, core.ChallengeSlider, func(ch *challenge) (bool, string) {
		if ch.grabbed {
			ch.grabbed = false
			ch.position = 0
		}
		return false, ""
	})
}

// ToggleItem selects or deselects a click challenge item
func (e *Engine) ToggleItem(ctx context.Context, sessionID, item string) (Outcome, error) {
	return e.gesture(ctx, sessionID, core.ChallengeClick, func(ch *challenge) (bool, string) {
		if ch.cooling || !bankHas(ch.bank, item) {
			return false, ""
		}
		if _, ok := ch.selected[item]; ok {
			delete(ch.selected, item)
		} else {
			ch.selected[item] = struct{}{}
		}
		return false, ""
	})
}

// SubmitSelection checks the current selection against the targets
func (e *Engine) SubmitSelection(ctx context.Context, sessionID string) (Outcome, error) {
	return e.gesture(ctx, sessionID, core.ChallengeClick, func(ch *challenge) (bool, string) {
		if ch.cooling || len(ch.selected) == 0 {
			return false, ""
		}
		if selectionMatches(ch.selected, ch.bank.Targets) {
			return true, ""
		}

		ch.cooling = true
		epoch := ch.epoch
		ch.cancel = e.scheduler.AfterFunc(e.cfg.ClickCooldown, func() {
			e.rearm(sessionID, epoch)
		})
		return false, WrongSelectionMessage
	})
}

// DropPiece drops the puzzle piece at p
func (e *Engine) DropPiece(ctx context.Context, sessionID string, p core.Point) (Outcome, error) {
	return e.gesture(ctx, sessionID, core.ChallengePuzzle, func(ch *challenge) (bool, string) {
		if pieceInPlace(p, e.cfg.PuzzleSlot, e.cfg.PuzzleTolerance) {
			ch.piece = e.cfg.PuzzleSlot
			return true, ""
		}
		ch.piece = e.cfg.PuzzleStart
		return false, ""
	})
}

// Reset cancels pending timers and returns the session to Idle with the same id
func (e *Engine) Reset(ctx context.Context, sessionID string) (Outcome, error) {
	if _, ok := e.store.Get(ctx, sessionID); !ok {
		return Outcome{}, core.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ch := e.challenge(sessionID)
	ch.cancelPending()
	ch.epoch++
	ch.state = core.StateIdle
	ch.kind = ""
	ch.bank = core.ClickBank{}
	ch.arm(e.cfg)
	e.store.Reset(ctx, sessionID)

	return Outcome{Presentation: e.present(sessionID, ch)}, nil
}

// Forget drops the engine state of a removed session
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.challenges[sessionID]; ok {
		ch.cancelPending()
		delete(e.challenges, sessionID)
	}
}

// Presentation returns the current challenge state of a session
func (e *Engine) Presentation(ctx context.Context, sessionID string) (Presentation, error) {
	if _, ok := e.store.Get(ctx, sessionID); !ok {
		return Presentation{}, core.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.present(sessionID, e.challenge(sessionID)), nil
}

// gesture applies a kind specific event to a started challenge and completes it when the predicate holds
func (e *Engine) gesture(
	ctx context.Context,
	sessionID string,
	kind core.ChallengeKind,
	apply func(ch *challenge) (complete bool, message string),
) (Outcome, error) {
	if _, ok := e.store.Get(ctx, sessionID); !ok {
		return Outcome{}, core.ErrSessionNotFound
	}

	e.mu.Lock()
	ch := e.challenge(sessionID)
	if ch.state != core.StateStarted || ch.kind != kind {
		out := Outcome{Presentation: e.present(sessionID, ch)}
		e.mu.Unlock()
		return out, nil
	}

	complete, message := apply(ch)
	if !complete {
		out := Outcome{Presentation: e.present(sessionID, ch), Error: message}
		e.mu.Unlock()
		return out, nil
	}

	userAgent := ch.userAgent
	out, session, err := e.complete(ctx, sessionID, ch)
	e.mu.Unlock()
	if err != nil {
		return out, err
	}

	e.publishSolved(ctx, session, userAgent)
	return out, nil
}

// complete marks the session solved and issues its token. Must be called with e.mu held.
func (e *Engine) complete(ctx context.Context, sessionID string, ch *challenge) (Outcome, core.Session, error) {
	e.store.MarkSolved(ctx, sessionID)
	session, ok := e.store.Get(ctx, sessionID)
	if !ok {
		return Outcome{}, core.Session{}, core.ErrSessionNotFound
	}

	token, err := e.issuer.Issue(session, ch.userAgent)
	if err != nil {
		// leave the challenge playable
		e.store.Reset(ctx, sessionID)
		e.store.SetKind(ctx, sessionID, ch.kind)
		ch.arm(e.cfg)
		return Outcome{Presentation: e.present(sessionID, ch)}, session, err
	}

	ch.cancelPending()
	ch.grabbed = false
	ch.state = core.StateSolved

	return Outcome{
		Presentation: e.present(sessionID, ch),
		Solved:       true,
		Token:        token,
	}, session, nil
}

// rearm ends a click cooldown unless the challenge moved on since it was scheduled
func (e *Engine) rearm(sessionID string, epoch uint64) {
	e.mu.Lock()
	ch, ok := e.challenges[sessionID]
	if !ok || ch.epoch != epoch || ch.state != core.StateStarted || !ch.cooling {
		e.mu.Unlock()
		return
	}
	ch.cooling = false
	ch.cancel = nil
	ch.selected = make(map[string]struct{})
	notify := e.onChange
	e.mu.Unlock()

	if notify != nil {
		notify(sessionID)
	}
}

func (e *Engine) publishSolved(ctx context.Context, session core.Session, userAgent string) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishSolved(ctx, session, userAgent); err != nil {
		slog.Warn("failed to publish solved event", "session_id", session.ID, "error", err)
	}
}

func (e *Engine) challenge(sessionID string) *challenge {
	ch, ok := e.challenges[sessionID]
	if !ok {
		ch = &challenge{state: core.StateIdle}
		ch.arm(e.cfg)
		e.challenges[sessionID] = ch
	}
	return ch
}

func (e *Engine) present(sessionID string, ch *challenge) Presentation {
	p := Presentation{
		SessionID: sessionID,
		Kind:      ch.kind,
		State:     ch.state,
	}

	switch ch.kind {
	case core.ChallengeSlider:
		position := 0.0
		if ch.travel > 0 {
			position = ch.position / ch.travel
		}
		p.Slider = &SliderView{Position: position, Grabbed: ch.grabbed}

	case core.ChallengeClick:
		selected := make([]string, 0, len(ch.selected))
		for _, item := range ch.bank.Items {
			if _, ok := ch.selected[item]; ok {
				selected = append(selected, item)
			}
		}
		p.Click = &ClickView{
			Instruction:   ch.bank.Instruction,
			Items:         append([]string(nil), ch.bank.Items...),
			Selected:      selected,
			SubmitEnabled: ch.state == core.StateStarted && !ch.cooling && len(ch.selected) > 0,
			CoolingDown:   ch.cooling,
		}

	case core.ChallengePuzzle:
		p.Puzzle = &PuzzleView{Piece: ch.piece, Slot: e.cfg.PuzzleSlot}
	}

	return p
}

func bankHas(bank core.ClickBank, item string) bool {
	for _, it := range bank.Items {
		if it == item {
			return true
		}
	}
	return false
}
