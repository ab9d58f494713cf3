package goSession

import (
	"context"
	"strings"
	"unicode/utf8"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"go.opentelemetry.io/otel/trace"
)

// Audit event types emitted by the controller.
const (
	AuditEventSignIn  = "session.sign_in"
	AuditEventSignUp  = "session.sign_up"
	AuditEventSignOut = "session.sign_out"
	AuditEventRefresh = "session.refresh"
)

type (
	// AuditEvent is one recorded controller transition or failure.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events from the dispatcher goroutine.
	AuditSink = internalaudit.Sink
	// NoOpSink discards events.
	NoOpSink = internalaudit.NoOpSink
	// ChannelSink forwards events to a channel.
	ChannelSink = internalaudit.ChannelSink
	// JSONWriterSink writes one JSON object per line.
	JSONWriterSink = internalaudit.JSONWriterSink
	// SlogSink logs events through a *slog.Logger.
	SlogSink = internalaudit.SlogSink
)

// NewChannelSink returns a sink backed by a channel of the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

var (
	// NewJSONWriterSink returns a sink writing JSON lines to w.
	NewJSONWriterSink = internalaudit.NewJSONWriterSink
	// NewSlogSink returns a sink logging through logger.
	NewSlogSink = internalaudit.NewSlogSink
)

func (c *Controller) emitAudit(ctx context.Context, ev AuditEvent) {
	if c.audit == nil {
		return
	}
	ev.Timestamp = c.now().UTC()
	ev.Provider = c.provider.Name()
	if c.cfg.Audit.MaskEmail {
		ev.Email = maskEmail(ev.Email)
	}
	md := requestMetadata(ctx)
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		if md == nil {
			md = make(map[string]string, 2)
		}
		md["trace_id"] = sc.TraceID().String()
		md["span_id"] = sc.SpanID().String()
	}
	if len(md) > 0 {
		if ev.Metadata == nil {
			ev.Metadata = md
		} else {
			for k, v := range md {
				ev.Metadata[k] = v
			}
		}
	}
	c.audit.Emit(ctx, ev)
}

// maskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}
