// Package widget mounts verification sessions into page targets and drives them
// from user events. Browsers only draw the View and forward gestures.
package widget

import (
	"sync"

	"github.com/layer-3/verigate/service"
)

// Status is the coarse state shown next to the checkbox
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusChallenge Status = "challenge"
	StatusSolved    Status = "solved"
)

var statusText = map[Status]string{
	StatusIdle:      "I am not a robot",
	StatusLoading:   "Verifying...",
	StatusChallenge: "Complete the challenge",
	StatusSolved:    "Verification succeeded",
}

// VerifyFailedMessage is shown when a solved session could not be turned into an accepted token
const VerifyFailedMessage = "Verification failed, please try again"

// View is the renderable state of a mounted widget
type View struct {
	SessionID  string                `json:"sessionId"`
	Target     string                `json:"target"`
	SiteKey    string                `json:"siteKey"`
	Theme      string                `json:"theme"`
	Size       string                `json:"size"`
	Status     Status                `json:"status"`
	StatusText string                `json:"statusText"`
	Checked    bool                  `json:"checked"`
	Challenge  *service.Presentation `json:"challenge,omitempty"`
	Error      string                `json:"error,omitempty"`
	Token      string                `json:"token,omitempty"`
	Redirect   string                `json:"redirect,omitempty"`
}

// Options configure a single Render call
type Options struct {
	SiteKey   string
	Theme     string
	Size      string
	UserAgent string

	// AutoRedirect, when set, sends the token to the remote verifier and navigates here on acceptance
	AutoRedirect string

	OnSuccess func(token string)
	OnError   func(err error)
	OnExpired func()
}

// Renderer draws views into page targets
type Renderer interface {
	Render(target string, view View)
	Unmount(target string)
}

// Navigator moves the page of a session to another location
type Navigator interface {
	Navigate(sessionID, url string)
}

// MemoryRenderer keeps the last view of every target
type MemoryRenderer struct {
	mu    sync.RWMutex
	views map[string]View
}

func NewMemoryRenderer() *MemoryRenderer {
	return &MemoryRenderer{views: make(map[string]View)}
}

// Render stores view as the content of target
func (r *MemoryRenderer) Render(target string, view View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[target] = view
}

// Unmount clears target
func (r *MemoryRenderer) Unmount(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, target)
}

// View returns the last view drawn into target
func (r *MemoryRenderer) View(target string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[target]
	return v, ok
}
