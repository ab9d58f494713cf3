package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/provider"
)

var (
	// ErrValidation is wrapped by every credential validation failure.
	ErrValidation = errors.New("invalid credentials input")
	// ErrEmptyEmail is returned when the email is empty.
	ErrEmptyEmail = fmt.Errorf("%w: email is empty", ErrValidation)
	// ErrEmptyPassword is returned when the password is empty.
	ErrEmptyPassword = fmt.Errorf("%w: password is empty", ErrValidation)

	// ErrInvalidCredentials is returned when the provider rejects the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by SignUp when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrWeakPassword is returned by SignUp when the provider rejects the password.
	ErrWeakPassword = errors.New("password too weak")
	// ErrInvalidEmail is returned when the provider rejects the email format.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrRateLimited is returned when the provider throttles the caller.
	ErrRateLimited = errors.New("too many attempts")
	// ErrProviderUnavailable is returned when the provider cannot be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrUserDisabled is returned when the account is disabled.
	ErrUserDisabled = errors.New("user disabled")
	// ErrProvider is returned for provider failures with no finer classification.
	ErrProvider = errors.New("identity provider error")

	// ErrControllerClosed is returned by operations submitted after Close, or
	// whose result was discarded because Close happened first.
	ErrControllerClosed = errors.New("session controller closed")
)

// ErrorKind classifies the last failed operation. It is published in
// State.LastError and matches the sentinel wrapped by the returned error.
type ErrorKind uint8

const (
	ErrorNone ErrorKind = iota
	ErrorValidation
	ErrorInvalidCredentials
	ErrorAccountExists
	ErrorWeakPassword
	ErrorInvalidEmail
	ErrorRateLimited
	ErrorUnavailable
	ErrorUserDisabled
	ErrorCanceled
	ErrorProvider
)

var errorKindNames = [...]string{
	ErrorNone:               "none",
	ErrorValidation:         "validation",
	ErrorInvalidCredentials: "invalid_credentials",
	ErrorAccountExists:      "account_exists",
	ErrorWeakPassword:       "weak_password",
	ErrorInvalidEmail:       "invalid_email",
	ErrorRateLimited:        "rate_limited",
	ErrorUnavailable:        "unavailable",
	ErrorUserDisabled:       "user_disabled",
	ErrorCanceled:           "canceled",
	ErrorProvider:           "provider",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "unknown"
}

// MarshalText renders the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind rendered by MarshalText.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for i, name := range errorKindNames {
		if name == string(b) {
			*k = ErrorKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

var kindSentinels = map[ErrorKind]error{
	ErrorValidation:         ErrValidation,
	ErrorInvalidCredentials: ErrInvalidCredentials,
	ErrorAccountExists:      ErrAccountExists,
	ErrorWeakPassword:       ErrWeakPassword,
	ErrorInvalidEmail:       ErrInvalidEmail,
	ErrorRateLimited:        ErrRateLimited,
	ErrorUnavailable:        ErrProviderUnavailable,
	ErrorUserDisabled:       ErrUserDisabled,
	ErrorProvider:           ErrProvider,
}

// KindOf maps an error returned by a Controller operation to its ErrorKind.
// nil maps to ErrorNone; unrecognised errors map to ErrorProvider.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	for kind := ErrorValidation; kind <= ErrorProvider; kind++ {
		if sentinel, ok := kindSentinels[kind]; ok && errors.Is(err, sentinel) {
			return kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCanceled
	}
	return classifyProvider(err)
}

// classifyProvider maps a provider failure onto an ErrorKind. A deadline
// counts as the provider not answering in time.
func classifyProvider(err error) ErrorKind {
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	switch provider.KindOf(err) {
	case provider.KindInvalidCredentials:
		return ErrorInvalidCredentials
	case provider.KindEmailExists:
		return ErrorAccountExists
	case provider.KindWeakPassword:
		return ErrorWeakPassword
	case provider.KindInvalidEmail:
		return ErrorInvalidEmail
	case provider.KindRateLimited:
		return ErrorRateLimited
	case provider.KindUserDisabled:
		return ErrorUserDisabled
	case provider.KindNetwork:
		return ErrorUnavailable
	default:
		return ErrorProvider
	}
}

// wrapProvider returns err wrapped in the sentinel for kind, keeping the
// provider error reachable through errors.As.
func wrapProvider(kind ErrorKind, err error) error {
	if kind == ErrorCanceled {
		return err
	}
	sentinel, ok := kindSentinels[kind]
	if !ok {
		sentinel = ErrProvider
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
