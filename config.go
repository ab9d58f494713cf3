package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every tunable of a Controller. Obtain a starting point from
// DefaultConfig and pass it to Builder.WithConfig.
type Config struct {
	Controller ControllerConfig
	Validation ValidationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
CONTROLLER CONFIG
====================================
*/

// ControllerConfig controls the operation queue.
type ControllerConfig struct {
	// QueueSize is the number of operations that may wait behind the one in
	// flight before submitters block.
	QueueSize int
	// CallTimeout bounds each provider call. Zero means no bound beyond the
	// caller's context.
	CallTimeout time.Duration
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig controls the credential checks applied before a provider
// is called.
type ValidationConfig struct {
	// TrimEmail strips surrounding whitespace from the email before the
	// emptiness check and the provider call.
	TrimEmail bool
	// MaxEmailBytes and MaxPasswordBytes reject oversized input as a
	// validation error. Zero disables the bound.
	MaxEmailBytes    int
	MaxPasswordBytes int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// MaskEmail replaces the local part of emails in audit events.
	MaskEmail bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Controller: ControllerConfig{
			QueueSize: 16,
		},
		Validation: ValidationConfig{
			MaxEmailBytes:    320,
			MaxPasswordBytes: 1024,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
			MaskEmail:  true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// DefaultConfig returns the configuration used when Builder.WithConfig is
// not called.
func DefaultConfig() Config {
	return defaultConfig()
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Controller.QueueSize < 0 {
		return errors.New("Controller QueueSize must be >= 0")
	}
	if c.Controller.QueueSize > 1<<16 {
		return errors.New("Controller QueueSize is too large")
	}
	if c.Controller.CallTimeout < 0 {
		return errors.New("Controller CallTimeout must be >= 0")
	}

	if c.Validation.MaxEmailBytes < 0 {
		return errors.New("Validation MaxEmailBytes must be >= 0")
	}
	if c.Validation.MaxPasswordBytes < 0 {
		return errors.New("Validation MaxPasswordBytes must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks lint warnings.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is an advisory finding about a valid but questionable
// configuration.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, 0, len(r))
	for _, w := range r {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint returns advisory warnings. It never fails; call Validate for hard
// errors.
func (c *Config) Lint() LintResult {
	var ws LintResult

	if c.Controller.QueueSize == 0 {
		ws = append(ws, LintWarning{
			Code:     "queue_unbuffered",
			Severity: LintWarn,
			Message:  "every submitter waits for the operation in flight to finish",
		})
	}
	if c.Controller.CallTimeout > 0 && c.Controller.CallTimeout < time.Second {
		ws = append(ws, LintWarning{
			Code:     "call_timeout_short",
			Severity: LintWarn,
			Message:  "provider calls shorter than one second often time out over real networks",
		})
	}
	if !c.Audit.Enabled {
		ws = append(ws, LintWarning{
			Code:     "audit_disabled",
			Severity: LintInfo,
			Message:  "sign-in and sign-out events are not recorded",
		})
	}
	if c.Audit.Enabled && !c.Audit.MaskEmail {
		ws = append(ws, LintWarning{
			Code:     "audit_email_unmasked",
			Severity: LintHigh,
			Message:  "audit events carry full email addresses",
		})
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		ws = append(ws, LintWarning{
			Code:     "audit_blocking",
			Severity: LintWarn,
			Message:  "a slow audit sink delays session transitions",
		})
	}
	if !c.Metrics.Enabled {
		ws = append(ws, LintWarning{
			Code:     "metrics_disabled",
			Severity: LintInfo,
			Message:  "operation counters are not collected",
		})
	}
	if c.Validation.MaxPasswordBytes == 0 {
		ws = append(ws, LintWarning{
			Code:     "password_unbounded",
			Severity: LintWarn,
			Message:  "passwords of any length are forwarded to the provider",
		})
	}

	return ws
}
