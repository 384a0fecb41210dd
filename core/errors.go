package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDecode           = errors.New("token could not be decoded")
	ErrRejected         = errors.New("token rejected")
	ErrTransport        = errors.New("verifier unreachable")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotSolved = errors.New("session is not solved")
	ErrInvalidSecret    = errors.New("token secret must not be empty")
)

// RejectError is a policy rejection carrying the machine readable reason
type RejectError struct {
	Reason Reason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRejected, e.Reason.Message())
}

func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}
