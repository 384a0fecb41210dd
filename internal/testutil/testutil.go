// Package testutil provides deterministic stand-ins for clocks, timers,
// challenge selection and event publishing.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/layer-3/verigate/core"
)

// Clock is a settable time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Scheduler collects callbacks and runs them when Advance moves past their deadline
type Scheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	nextID  int
	pending map[int]*scheduled
}

type scheduled struct {
	at time.Duration
	id int
	f  func()
}

func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[int]*scheduled)}
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.pending[id] = &scheduled{at: s.elapsed + d, id: id, f: f}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pending, id)
	}
}

// Advance moves time forward and fires every due callback in deadline order
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.elapsed += d
	var due []*scheduled
	for id, task := range s.pending {
		if task.at <= s.elapsed {
			due = append(due, task)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].id < due[j].id
		}
		return due[i].at < due[j].at
	})
	for _, task := range due {
		task.f()
	}
}

// Pending returns the number of callbacks that have neither fired nor been cancelled
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Selector always picks the configured kind and bank
type Selector struct {
	Pick core.ChallengeKind
	Bank int
}

func (s Selector) Kind(kinds []core.ChallengeKind) core.ChallengeKind {
	for _, k := range kinds {
		if k == s.Pick {
			return k
		}
	}
	return kinds[0]
}

func (s Selector) ClickBank(banks []core.ClickBank) core.ClickBank {
	if s.Bank < len(banks) {
		return banks[s.Bank]
	}
	return banks[0]
}

// Publisher records published events
type Publisher struct {
	mu            sync.Mutex
	Solved        []core.Session
	Verifications []core.Verdict
	Err           error
}

func (p *Publisher) PublishSolved(ctx context.Context, session core.Session, userAgent string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Solved = append(p.Solved, session)
	return p.Err
}

func (p *Publisher) PublishVerification(ctx context.Context, siteKey string, verdict core.Verdict) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Verifications = append(p.Verifications, verdict)
	return p.Err
}

func (p *Publisher) SolvedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Solved)
}

// Sites serves fixed site configurations and the defaults for everything else
type Sites map[string]core.SiteConfig

func (s Sites) Lookup(siteKey string) core.SiteConfig {
	if cfg, ok := s[siteKey]; ok {
		return cfg
	}
	return core.DefaultSiteConfig(siteKey)
}
