package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
	"github.com/layer-3/verigate/service"
)

// Timing holds the delays of the widget flow
type Timing struct {
	StartDelay    time.Duration // between the checkbox click and the challenge
	ErrorDismiss  time.Duration // lifetime of a local error message
	TokenLifetime time.Duration // after which a solved widget expires and resets
}

// DefaultTiming returns the standard widget delays
func DefaultTiming() Timing {
	return Timing{
		StartDelay:    time.Second,
		ErrorDismiss:  3 * time.Second,
		TokenLifetime: 5 * time.Minute,
	}
}

// Option configures a Controller
type Option func(*Controller)

// WithRemoteVerifier enables the auto-redirect flow
func WithRemoteVerifier(v ports.RemoteVerifier) Option {
	return func(c *Controller) { c.verifier = v }
}

// WithNavigator sets the navigator used after an accepted auto-redirect
func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

// WithTiming overrides the default delays
func WithTiming(t Timing) Option {
	return func(c *Controller) { c.timing = t }
}

type mount struct {
	id     string
	target string
	opts   Options
	theme  string
	size   string

	epoch        uint64
	status       Status
	presentation *service.Presentation
	errMsg       string
	errSeq       uint64
	token        string
	redirect     string

	startCancel   func()
	dismissCancel func()
	expiryCancel  func()
}

func (m *mount) cancelTimers() {
	for _, cancel := range []func(){m.startCancel, m.dismissCancel, m.expiryCancel} {
		if cancel != nil {
			cancel()
		}
	}
	m.startCancel, m.dismissCancel, m.expiryCancel = nil, nil, nil
}

func (m *mount) view() View {
	v := View{
		SessionID:  m.id,
		Target:     m.target,
		SiteKey:    m.opts.SiteKey,
		Theme:      m.theme,
		Size:       m.size,
		Status:     m.status,
		StatusText: statusText[m.status],
		Checked:    m.status != StatusIdle,
		Error:      m.errMsg,
		Token:      m.token,
		Redirect:   m.redirect,
	}
	if m.presentation != nil {
		p := *m.presentation
		v.Challenge = &p
	}
	return v
}

// delivery is what a freshly solved widget hands to its caller
type delivery struct {
	opts  Options
	token string
}

// Controller owns the mounted widgets of a process.
// It registers itself as the engine's change listener, so an engine serves one controller.
type Controller struct {
	engine    *service.Engine
	store     ports.SessionStore
	sites     ports.SiteRegistry
	scheduler ports.Scheduler
	renderer  Renderer
	verifier  ports.RemoteVerifier
	navigator Navigator
	timing    Timing

	mu      sync.Mutex
	mounts  map[string]*mount
	targets map[string]string

	// serializes drawing so the renderer always ends with the latest view
	renderMu sync.Mutex
}

// NewController creates a widget controller
func NewController(
	engine *service.Engine,
	store ports.SessionStore,
	sites ports.SiteRegistry,
	scheduler ports.Scheduler,
	renderer Renderer,
	opts ...Option,
) *Controller {
	c := &Controller{
		engine:    engine,
		store:     store,
		sites:     sites,
		scheduler: scheduler,
		renderer:  renderer,
		timing:    DefaultTiming(),
		mounts:    make(map[string]*mount),
		targets:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	engine.OnChange(c.refresh)
	return c
}

// Render mounts a new session into target and returns its id.
// A session already mounted there is removed first.
func (c *Controller) Render(ctx context.Context, target string, opts Options) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: target is required", core.ErrInvalidInput)
	}
	if opts.SiteKey == "" {
		opts.SiteKey = core.DefaultSiteKey
	}

	site := c.sites.Lookup(opts.SiteKey)
	session, err := c.store.Create(ctx, opts.SiteKey, site)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	m := &mount{
		id:     session.ID,
		target: target,
		opts:   opts,
		theme:  firstNonEmpty(opts.Theme, site.Theme, core.ThemeLight),
		size:   firstNonEmpty(opts.Size, site.Size, core.SizeNormal),
		status: StatusIdle,
	}

	c.mu.Lock()
	var previous *mount
	if id, ok := c.targets[target]; ok {
		previous = c.mounts[id]
		c.detachLocked(previous)
	}
	c.mounts[m.id] = m
	c.targets[target] = m.id
	c.mu.Unlock()

	if previous != nil {
		c.release(ctx, previous)
		slog.Debug("widget replaced", "target", target, "session_id", previous.id)
	}

	c.publish(m.id)
	slog.Debug("widget mounted", "target", target, "session_id", m.id, "site_key", opts.SiteKey)
	return m.id, nil
}

// Check handles the checkbox click: the widget shows a loading status and starts its challenge after the start delay
func (c *Controller) Check(ctx context.Context, sessionID string) (View, error) {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok {
		c.mu.Unlock()
		return View{}, core.ErrSessionNotFound
	}
	if m.status != StatusIdle {
		v := m.view()
		c.mu.Unlock()
		return v, nil
	}

	m.status = StatusLoading
	epoch := m.epoch
	m.startCancel = c.scheduler.AfterFunc(c.timing.StartDelay, func() {
		c.start(sessionID, epoch)
	})
	c.mu.Unlock()

	return c.publish(sessionID), nil
}

// SliderGrab starts dragging the slider handle
func (c *Controller) SliderGrab(ctx context.Context, sessionID string) (View, error) {
	return c.forward(ctx, sessionID, func(ctx context.Context) (service.Outcome, error) {
		return c.engine.SliderGrab(ctx, sessionID)
	})
}

// SliderMove moves the slider handle to x on a track of length travel
func (c *Controller) SliderMove(ctx context.Context, sessionID string, x, travel float64) (View, error) {
	return c.forward(ctx, sessionID, func(ctx context.Context) (service.Outcome, error) {
		return c.engine.SliderMove(ctx, sessionID, x, travel)
	})
}

// SliderRelease drops the slider handle
func (c *Controller) SliderRelease(ctx context.Context, sessionID string) (View, error) {
	return c.forward(ctx, sessionID, func(ctx context.Context) (service.Outcome, error) {
		return c.engine.SliderRelease(ctx, sessionID)
	})
}

// Toggle selects or deselects an item of the click challenge
func (c *Controller) Toggle(ctx context.Context, sessionID, item string) (View, error) {
	return c.forward(ctx, sessionID, func(ctx context.Context) (service.Outcome, error) {
		return c.engine.ToggleItem(ctx, sessionID, item)
	})
}

// Submit checks the click challenge selection
func (c *Controller) Submit(ctx context.Context, sessionID string) (View, error) {
	return c.forward(ctx, sessionID, func(ctx context.Context) (service.Outcome, error) {
		return c.engine.SubmitSelection(ctx, sessionID)
	})
}

// Drop places the puzzle piece at p
func (c *Controller) Drop(ctx context.Context, sessionID string, p core.Point) (View, error) {
	return c.forward(ctx, sessionID, func(ctx context.Context) (service.Outcome, error) {
		return c.engine.DropPiece(ctx, sessionID, p)
	})
}

// Reset returns the widget to its initial unsolved view under the same session id
func (c *Controller) Reset(ctx context.Context, sessionID string) (View, error) {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok {
		c.mu.Unlock()
		return View{}, core.ErrSessionNotFound
	}
	m.cancelTimers()
	m.epoch++
	m.status = StatusIdle
	m.presentation = nil
	m.errMsg = ""
	m.token = ""
	m.redirect = ""
	c.mu.Unlock()

	if _, err := c.engine.Reset(ctx, sessionID); err != nil {
		return View{}, err
	}
	return c.publish(sessionID), nil
}

// Remove unmounts the widget and deletes its session
func (c *Controller) Remove(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok {
		c.mu.Unlock()
		return core.ErrSessionNotFound
	}
	c.detachLocked(m)
	c.mu.Unlock()

	c.release(ctx, m)
	c.renderMu.Lock()
	c.renderer.Unmount(m.target)
	c.renderMu.Unlock()
	return nil
}

// View returns the current view of a session
func (c *Controller) View(sessionID string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.mounts[sessionID]
	if !ok {
		return View{}, false
	}
	return m.view(), true
}

func (c *Controller) start(sessionID string, epoch uint64) {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok || m.epoch != epoch || m.status != StatusLoading {
		c.mu.Unlock()
		return
	}
	m.startCancel = nil
	userAgent := m.opts.UserAgent
	c.mu.Unlock()

	out, err := c.engine.Start(context.Background(), sessionID, userAgent)
	if err != nil {
		slog.Warn("failed to start challenge", "session_id", sessionID, "error", err)
		return
	}

	c.mu.Lock()
	m, ok = c.mounts[sessionID]
	if !ok || m.epoch != epoch {
		c.mu.Unlock()
		return
	}
	m.status = StatusChallenge
	m.presentation = &out.Presentation
	c.mu.Unlock()

	c.publish(sessionID)
}

// forward feeds a gesture into the engine and applies the outcome to the widget
func (c *Controller) forward(
	ctx context.Context,
	sessionID string,
	event func(ctx context.Context) (service.Outcome, error),
) (View, error) {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok {
		c.mu.Unlock()
		return View{}, core.ErrSessionNotFound
	}
	if m.status != StatusChallenge {
		v := m.view()
		c.mu.Unlock()
		return v, nil
	}
	epoch := m.epoch
	c.mu.Unlock()

	out, err := event(ctx)
	if errors.Is(err, core.ErrSessionNotFound) {
		return View{}, err
	}

	c.mu.Lock()
	m, ok = c.mounts[sessionID]
	if !ok {
		c.mu.Unlock()
		return View{}, core.ErrSessionNotFound
	}
	if m.epoch != epoch {
		v := m.view()
		c.mu.Unlock()
		return v, nil
	}
	m.presentation = &out.Presentation
	if err != nil {
		c.mu.Unlock()
		c.fail(sessionID, epoch, VerifyFailedMessage, err)
		return c.current(sessionID)
	}
	if out.Error != "" {
		c.showErrorLocked(m, out.Error)
	}
	var d *delivery
	if out.Solved {
		d = c.solveLocked(m, out.Token)
	}
	c.mu.Unlock()

	c.publish(sessionID)
	if d != nil {
		c.deliver(ctx, sessionID, epoch, *d)
	}
	return c.current(sessionID)
}

// solveLocked switches the widget to its success view and arms token expiry
func (c *Controller) solveLocked(m *mount, token string) *delivery {
	if m.dismissCancel != nil {
		m.dismissCancel()
		m.dismissCancel = nil
	}
	m.status = StatusSolved
	m.errMsg = ""
	m.token = token

	id, epoch := m.id, m.epoch
	m.expiryCancel = c.scheduler.AfterFunc(c.timing.TokenLifetime, func() {
		c.expire(id, epoch)
	})
	return &delivery{opts: m.opts, token: token}
}

// deliver hands the token to OnSuccess, or runs it through the remote verifier when auto-redirect is on
func (c *Controller) deliver(ctx context.Context, sessionID string, epoch uint64, d delivery) {
	if d.opts.AutoRedirect == "" || c.verifier == nil {
		if d.opts.OnSuccess != nil {
			d.opts.OnSuccess(d.token)
		}
		return
	}

	verdict, err := c.verifier.Verify(ctx, d.token, d.opts.SiteKey)
	switch {
	case err != nil:
		c.fail(sessionID, epoch, VerifyFailedMessage, err)
	case !verdict.Accepted:
		c.fail(sessionID, epoch, verdict.Reason.Message(), verdict.Err())
	default:
		c.mu.Lock()
		m, ok := c.mounts[sessionID]
		if !ok || m.epoch != epoch {
			c.mu.Unlock()
			return
		}
		m.redirect = d.opts.AutoRedirect
		c.mu.Unlock()

		c.publish(sessionID)
		if c.navigator != nil {
			c.navigator.Navigate(sessionID, d.opts.AutoRedirect)
		}
	}
}

// fail shows a local error and reports err to OnError
func (c *Controller) fail(sessionID string, epoch uint64, message string, err error) {
	slog.Warn("widget verification failed", "session_id", sessionID, "error", err)

	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok || m.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.showErrorLocked(m, message)
	onError := m.opts.OnError
	c.mu.Unlock()

	c.publish(sessionID)
	if onError != nil {
		onError(err)
	}
}

func (c *Controller) showErrorLocked(m *mount, message string) {
	if m.dismissCancel != nil {
		m.dismissCancel()
	}
	m.errMsg = message
	m.errSeq++

	id, epoch, seq := m.id, m.epoch, m.errSeq
	m.dismissCancel = c.scheduler.AfterFunc(c.timing.ErrorDismiss, func() {
		c.dismiss(id, epoch, seq)
	})
}

func (c *Controller) dismiss(sessionID string, epoch, seq uint64) {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok || m.epoch != epoch || m.errSeq != seq {
		c.mu.Unlock()
		return
	}
	m.errMsg = ""
	m.dismissCancel = nil
	c.mu.Unlock()

	c.publish(sessionID)
}

// expire resets a solved widget whose token outlived its lifetime
func (c *Controller) expire(sessionID string, epoch uint64) {
	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok || m.epoch != epoch || m.status != StatusSolved {
		c.mu.Unlock()
		return
	}
	m.expiryCancel = nil
	onExpired := m.opts.OnExpired
	c.mu.Unlock()

	if _, err := c.Reset(context.Background(), sessionID); err != nil {
		slog.Warn("failed to reset expired widget", "session_id", sessionID, "error", err)
		return
	}
	if onExpired != nil {
		onExpired()
	}
}

// refresh redraws a challenge that changed outside of a gesture, such as at the end of a click cooldown
func (c *Controller) refresh(sessionID string) {
	p, err := c.engine.Presentation(context.Background(), sessionID)
	if err != nil {
		return
	}

	c.mu.Lock()
	m, ok := c.mounts[sessionID]
	if !ok || m.status != StatusChallenge {
		c.mu.Unlock()
		return
	}
	m.presentation = &p
	c.mu.Unlock()

	c.publish(sessionID)
}

// detachLocked removes m from the controller maps and invalidates its timers
func (c *Controller) detachLocked(m *mount) {
	m.cancelTimers()
	m.epoch++
	delete(c.mounts, m.id)
	if c.targets[m.target] == m.id {
		delete(c.targets, m.target)
	}
}

func (c *Controller) release(ctx context.Context, m *mount) {
	c.engine.Forget(m.id)
	c.store.Delete(ctx, m.id)
}

// publish draws the current view of a session and returns it
func (c *Controller) publish(sessionID string) View {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	v, ok := c.View(sessionID)
	if !ok {
		return View{}
	}
	c.renderer.Render(v.Target, v)
	return v
}

func (c *Controller) current(sessionID string) (View, error) {
	v, ok := c.View(sessionID)
	if !ok {
		return View{}, core.ErrSessionNotFound
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
