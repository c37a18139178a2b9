package authbroker

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AuthError.
type ErrorKind int

// Auth error kinds.
const (
	KindNoAccount ErrorKind = iota
	KindSilentFailed
	KindInteractionRequired
	KindInteractionFailed
)

// Sentinels matching each ErrorKind, for errors.Is.
var (
	ErrNoAccount           = errors.New("no signed-in account")
	ErrSilentFailed        = errors.New("silent token acquisition failed")
	ErrInteractionRequired = errors.New("interaction required")
	ErrInteractionFailed   = errors.New("interactive token acquisition failed")

	// ErrSessionReset is returned to callers whose acquisition was started
	// before Reset; its token is not handed out.
	ErrSessionReset = errors.New("authbroker: session was reset during acquisition")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindSilentFailed:
		return ErrSilentFailed
	case KindInteractionRequired:
		return ErrInteractionRequired
	case KindInteractionFailed:
		return ErrInteractionFailed
	default:
		return ErrNoAccount
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// AuthError reports a failed token acquisition for one scope set. It
// matches both its kind sentinel and the underlying cause under errors.Is.
type AuthError struct {
	Kind  ErrorKind
	Scope string // scope set name
	Err   error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authbroker: %s (%s)", e.Kind, e.Scope)
	}

	return fmt.Sprintf("authbroker: %s (%s): %v", e.Kind, e.Scope, e.Err)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}

	return []error{e.Kind.sentinel(), e.Err}
}
