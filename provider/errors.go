package provider

import (
	"context"
	"errors"
	"net"
)

// Kind classifies provider failures.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindEmailExists
	KindWeakPassword
	KindInvalidEmail
	KindRateLimited
	KindUserDisabled
	KindNetwork
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindInvalidCredentials: "invalid_credentials",
	KindEmailExists:        "email_exists",
	KindWeakPassword:       "weak_password",
	KindInvalidEmail:       "invalid_email",
	KindRateLimited:        "rate_limited",
	KindUserDisabled:       "user_disabled",
	KindNetwork:            "network",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is returned by backends for classified failures. Code carries the
// backend's own error code when there is one (for example "EMAIL_EXISTS").
type Error struct {
	Kind Kind
	Code string
	Err  error
}

// NewError builds an *Error. err may be nil.
func NewError(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func (e *Error) Error() string {
	msg := "provider: " + e.Kind.String()
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind, so callers can write
// errors.Is(err, &provider.Error{Kind: provider.KindEmailExists}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf classifies err. Context expiry and net.Error values count as
// KindNetwork; anything unrecognised is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}
	return KindUnknown
}
