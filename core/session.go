package core

// ChallengeKind identifies one of the interactive challenge variants
type ChallengeKind string

const (
	ChallengeSlider ChallengeKind = "slider"
	ChallengeClick  ChallengeKind = "click"
	ChallengePuzzle ChallengeKind = "puzzle"
)

// AllChallengeKinds lists every supported variant in selection order
var AllChallengeKinds = []ChallengeKind{ChallengeSlider, ChallengeClick, ChallengePuzzle}

// Valid reports whether k is a known challenge kind
func (k ChallengeKind) Valid() bool {
	switch k {
	case ChallengeSlider, ChallengeClick, ChallengePuzzle:
		return true
	}
	return false
}

// ChallengeState is the per-session challenge state machine: Idle -> Started -> Solved
type ChallengeState string

const (
	StateIdle    ChallengeState = "idle"
	StateStarted ChallengeState = "started"
	StateSolved  ChallengeState = "solved"
)

// Session represents one verification attempt
type Session struct {
	ID      string        // Opaque session identifier, unique per render
	SiteKey string        // Tenant the session is bound to
	Kind    ChallengeKind // Challenge picked at start, empty while idle
	Solved  bool          // Set once on completion, cleared by reset
	Config  SiteConfig    // Site configuration captured at creation
}
