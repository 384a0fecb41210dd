package core

// ChallengeCompleted is the completion marker carried by every issued token
const ChallengeCompleted = "completed"

// Payload is the claim set carried inside a token.
// Field names are part of the wire format shared with other issuers and verifiers.
type Payload struct {
	SessionID string `json:"sessionId"`
	SiteKey   string `json:"siteKey"`
	Timestamp int64  `json:"timestamp"` // issuance instant, unix milliseconds
	UserAgent string `json:"userAgent"`
	Challenge string `json:"challenge"`
}

// Claims are the fields handed back to the caller when a token is accepted
type Claims struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Challenge string `json:"challenge"`
}

// Reason is the machine readable cause of a rejection
type Reason string

const (
	ReasonMalformed    Reason = "malformed"
	ReasonSiteMismatch Reason = "site_mismatch"
	ReasonExpired      Reason = "expired"
	ReasonNotCompleted Reason = "not_completed"
)

// Message returns a human readable description of the reason
func (r Reason) Message() string {
	switch r {
	case ReasonMalformed:
		return "token is malformed"
	case ReasonSiteMismatch:
		return "site key does not match"
	case ReasonExpired:
		return "token has expired"
	case ReasonNotCompleted:
		return "challenge not completed"
	}
	return "verification failed"
}

// Verdict is the outcome of verifying a token
type Verdict struct {
	Accepted bool
	Reason   Reason // empty when accepted
	Claims   Claims // populated when accepted
}

// Accept builds an accepting verdict from a payload
func Accept(p Payload) Verdict {
	return Verdict{
		Accepted: true,
		Claims: Claims{
			SessionID: p.SessionID,
			Timestamp: p.Timestamp,
			Challenge: p.Challenge,
		},
	}
}

// Reject builds a rejecting verdict
func Reject(reason Reason) Verdict {
	return Verdict{Reason: reason}
}

// Err converts a rejecting verdict into a RejectError, nil when accepted
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	return &RejectError{Reason: v.Reason}
}
