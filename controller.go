package goSession

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/observe"
	"github.com/MrEthical07/goSession/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Controller is the single owner of the session state. Every mutating
// operation is queued and executed in submission order on one goroutine, so
// provider results are applied one at a time and never interleave. Readers
// never wait on provider calls.
type Controller struct {
	cfg      Config
	provider provider.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	audit    *internalaudit.Dispatcher
	state    *observe.Cell[State]

	ops      chan *op
	lifetime context.Context
	stop     context.CancelFunc
	loopDone chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	now func() time.Time
}

type opKind uint8

const (
	opSignIn opKind = iota
	opSignUp
	opSignOut
	opRefresh
	opReject
)

func (k opKind) String() string {
	switch k {
	case opSignIn:
		return "sign_in"
	case opSignUp:
		return "sign_up"
	case opSignOut:
		return "sign_out"
	case opRefresh:
		return "refresh"
	default:
		return "reject"
	}
}

type op struct {
	kind     opKind
	ctx      context.Context
	email    string
	password string
	// rejectKind is the operation a validation failure belongs to.
	rejectKind opKind
	rejectErr  error
	done       chan error
}

/*
====================================
OPERATIONS
====================================
*/

// SignIn authenticates with the provider. On success the state becomes
// signed in. On failure SignedIn is unchanged, State.LastError carries the
// classified kind, and the returned error wraps the matching sentinel.
// Empty credentials are rejected with ErrValidation without calling the
// provider.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	return c.credentials(ctx, opSignIn, email, password)
}

// SignUp creates an account with the provider. It follows the SignIn
// contract.
func (c *Controller) SignUp(ctx context.Context, email, password string) error {
	return c.credentials(ctx, opSignUp, email, password)
}

// SignOut ends the provider session and always leaves the state signed out.
// Provider failures are logged and counted but not returned. Once queued the
// sign-out runs even if ctx ends first; the only errors are
// ErrControllerClosed and ctx's error.
func (c *Controller) SignOut(ctx context.Context) error {
	return c.submit(ctx, &op{kind: opSignOut})
}

// RefreshFromProvider sets SignedIn to whether the provider currently holds
// a user. The provider answers from its cached state.
func (c *Controller) RefreshFromProvider(ctx context.Context) error {
	return c.submit(ctx, &op{kind: opRefresh})
}

// SignedIn reports the current flag.
func (c *Controller) SignedIn() bool {
	return c.state.Load().SignedIn
}

// State returns the current snapshot.
func (c *Controller) State() State {
	return c.state.Load()
}

// Subscribe returns a subscription that receives the current state at once
// and each later state. The channel is closed by Subscription.Close or
// Controller.Close.
func (c *Controller) Subscribe() *Subscription {
	ch, cancel := c.state.Subscribe()
	return &Subscription{C: ch, cancel: cancel}
}

// MetricsSnapshot returns a copy of the operation counters.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (c *Controller) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// ProviderName returns the name of the configured provider.
func (c *Controller) ProviderName() string {
	return c.provider.Name()
}

// Close stops the controller. Queued operations fail with
// ErrControllerClosed, in-flight provider calls are canceled and their
// results discarded, subscriptions are closed and pending audit events are
// flushed. Close is idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stop()
		<-c.loopDone
		c.state.CloseAll()
		c.audit.Close()
	})
}

/*
====================================
QUEUE
====================================
*/

func (c *Controller) credentials(ctx context.Context, kind opKind, email, password string) error {
	if c.cfg.Validation.TrimEmail {
		email = strings.TrimSpace(email)
	}
	if err := c.validate(email, password); err != nil {
		c.metrics.Inc(MetricValidationRejected)
		_ = c.submit(ctx, &op{kind: opReject, email: email, rejectKind: kind, rejectErr: err})
		return err
	}
	return c.submit(ctx, &op{kind: kind, email: email, password: password})
}

func (c *Controller) validate(email, password string) error {
	if email == "" {
		return ErrEmptyEmail
	}
	if password == "" {
		return ErrEmptyPassword
	}
	if max := c.cfg.Validation.MaxEmailBytes; max > 0 && len(email) > max {
		return fmt.Errorf("%w: email exceeds %d bytes", ErrValidation, max)
	}
	if max := c.cfg.Validation.MaxPasswordBytes; max > 0 && len(password) > max {
		return fmt.Errorf("%w: password exceeds %d bytes", ErrValidation, max)
	}
	return nil
}

// submit queues o and waits for its result.
func (c *Controller) submit(ctx context.Context, o *op) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.closed.Load() {
		return ErrControllerClosed
	}

	o.ctx = ctx
	o.done = make(chan error, 1)

	select {
	case c.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.lifetime.Done():
		return ErrControllerClosed
	}

	// A caller that gives up stops waiting. The loop still runs a queued
	// sign-out or reject and skips anything else.
	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.loopDone:
		// The op may have slipped into the queue after the final drain.
		select {
		case err := <-o.done:
			return err
		default:
			return ErrControllerClosed
		}
	}
}

func (c *Controller) run() {
	defer close(c.loopDone)

	for {
		select {
		case <-c.lifetime.Done():
			c.drain()
			return
		case o := <-c.ops:
			if c.closed.Load() {
				o.done <- ErrControllerClosed
				continue
			}
			o.done <- c.execute(o)
		}
	}
}

func (c *Controller) drain() {
	for {
		select {
		case o := <-c.ops:
			o.done <- ErrControllerClosed
		default:
			return
		}
	}
}

// callContext derives the context for one provider call. It ends when
// parent ends, when the controller closes, or after CallTimeout.
func (c *Controller) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stopAfter := context.AfterFunc(c.lifetime, cancel)

	if timeout := c.cfg.Controller.CallTimeout; timeout > 0 {
		tctx, tcancel := context.WithTimeout(ctx, timeout)
		return tctx, func() {
			tcancel()
			stopAfter()
			cancel()
		}
	}

	return ctx, func() {
		stopAfter()
		cancel()
	}
}

/*
====================================
EXECUTION
====================================
*/

func (c *Controller) execute(o *op) (err error) {
	if o.kind == opReject {
		return c.reject(o)
	}

	// Work whose caller gave up while queued is skipped. A queued sign-out
	// always runs.
	if o.kind != opSignOut {
		if err := o.ctx.Err(); err != nil {
			c.logger.Debug("operation skipped", "op", o.kind.String(), "error", err)
			return err
		}
	}

	var span trace.Span
	o.ctx, span = c.tracer.Start(o.ctx, "session."+o.kind.String(),
		trace.WithAttributes(attribute.String("session.provider", c.provider.Name())),
	)
	defer func() {
		s := c.state.Load()
		span.SetAttributes(
			attribute.Bool("session.signed_in", s.SignedIn),
			attribute.Int64("session.generation", int64(s.Generation)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, KindOf(err).String())
		}
		span.End()
	}()

	switch o.kind {
	case opSignOut:
		return c.signOut(o)
	case opRefresh:
		return c.refresh(o)
	default:
		return c.authenticate(o)
	}
}

func (c *Controller) reject(o *op) error {
	s := c.apply(func(s *State) {
		s.LastError = ErrorValidation
	})
	c.logger.Debug("credentials rejected", "op", o.rejectKind.String(), "error", o.rejectErr)
	c.emitAudit(o.ctx, AuditEvent{
		EventType:  auditEventType(o.rejectKind),
		Email:      o.email,
		Success:    false,
		SignedIn:   s.SignedIn,
		Generation: s.Generation,
		Error:      ErrorValidation.String(),
	})
	return o.rejectErr
}

func (c *Controller) authenticate(o *op) error {
	callCtx, cancel := c.callContext(o.ctx)
	start := time.Now()

	var (
		u   provider.User
		err error
	)
	if o.kind == opSignIn {
		u, err = c.provider.SignIn(callCtx, o.email, o.password)
	} else {
		u, err = c.provider.SignUp(callCtx, o.email, o.password)
	}

	c.metrics.Observe(MetricProviderLatency, time.Since(start))
	cancel()

	if c.discard(o) {
		return ErrControllerClosed
	}

	success, failure := MetricSignInSuccess, MetricSignInFailure
	if o.kind == opSignUp {
		success, failure = MetricSignUpSuccess, MetricSignUpFailure
	}

	if err != nil {
		kind := classifyProvider(err)
		c.metrics.Inc(failure)
		s := c.apply(func(s *State) {
			s.LastError = kind
		})
		c.logger.Debug("provider rejected operation",
			"op", o.kind.String(),
			"kind", kind.String(),
			"error", err,
		)
		c.emitAudit(o.ctx, AuditEvent{
			EventType:  auditEventType(o.kind),
			Email:      o.email,
			Success:    false,
			SignedIn:   s.SignedIn,
			Generation: s.Generation,
			Error:      kind.String(),
		})
		return wrapProvider(kind, err)
	}

	if u.Provider == "" {
		u.Provider = c.provider.Name()
	}
	c.metrics.Inc(success)
	s := c.apply(func(s *State) {
		s.SignedIn = true
		s.User = u
		s.LastError = ErrorNone
	})
	c.logger.Debug("signed in", "op", o.kind.String(), "user_id", u.ID, "generation", s.Generation)
	c.emitAudit(o.ctx, AuditEvent{
		EventType:  auditEventType(o.kind),
		UserID:     u.ID,
		Email:      u.Email,
		Success:    true,
		SignedIn:   true,
		Generation: s.Generation,
	})
	return nil
}

func (c *Controller) signOut(o *op) error {
	// The caller's cancellation is detached: a queued sign-out always runs.
	callCtx, cancel := c.callContext(context.WithoutCancel(o.ctx))
	start := time.Now()
	err := c.provider.SignOut(callCtx)
	c.metrics.Observe(MetricProviderLatency, time.Since(start))
	cancel()

	if c.discard(o) {
		return ErrControllerClosed
	}

	prev := c.state.Load().User
	if err != nil {
		c.metrics.Inc(MetricSignOutProviderFailure)
		c.logger.Warn("provider sign-out failed; signed out locally",
			"kind", classifyProvider(err).String(),
			"error", err,
		)
		trace.SpanFromContext(o.ctx).RecordError(err,
			trace.WithAttributes(attribute.String("session.error_kind", classifyProvider(err).String())),
		)
	}

	c.metrics.Inc(MetricSignOut)
	s := c.apply(func(s *State) {
		s.SignedIn = false
		s.User = provider.User{}
		s.LastError = ErrorNone
	})
	c.logger.Debug("signed out", "user_id", prev.ID, "generation", s.Generation)

	ev := AuditEvent{
		EventType:  AuditEventSignOut,
		UserID:     prev.ID,
		Email:      prev.Email,
		Success:    err == nil,
		SignedIn:   false,
		Generation: s.Generation,
	}
	if err != nil {
		ev.Error = classifyProvider(err).String()
	}
	c.emitAudit(o.ctx, ev)
	return nil
}

func (c *Controller) refresh(o *op) error {
	callCtx, cancel := c.callContext(o.ctx)
	u, ok := c.provider.CurrentUser(callCtx)
	cancel()

	if c.discard(o) {
		return ErrControllerClosed
	}

	if ok {
		c.metrics.Inc(MetricRefreshSignedIn)
	} else {
		c.metrics.Inc(MetricRefreshSignedOut)
		u = provider.User{}
	}

	s := c.apply(func(s *State) {
		s.SignedIn = ok
		s.User = u
		s.LastError = ErrorNone
	})
	c.logger.Debug("refreshed from provider", "signed_in", ok, "generation", s.Generation)
	c.emitAudit(o.ctx, AuditEvent{
		EventType:  AuditEventRefresh,
		UserID:     u.ID,
		Email:      u.Email,
		Success:    true,
		SignedIn:   ok,
		Generation: s.Generation,
	})
	return nil
}

// discard reports whether the controller closed while o's provider call was
// in flight. Such results are never applied.
func (c *Controller) discard(o *op) bool {
	if !c.closed.Load() {
		return false
	}
	c.metrics.Inc(MetricStaleResultDiscarded)
	c.logger.Debug("result discarded after close", "op", o.kind.String())
	return true
}

// apply mutates a copy of the state and publishes it with the next
// generation. Only the controller goroutine calls apply.
func (c *Controller) apply(mutate func(*State)) State {
	s := c.state.Load()
	mutate(&s)
	s.Generation++
	s.UpdatedAt = c.now()
	c.state.Store(s)
	return s
}

func auditEventType(kind opKind) string {
	switch kind {
	case opSignIn:
		return AuditEventSignIn
	case opSignUp:
		return AuditEventSignUp
	case opSignOut:
		return AuditEventSignOut
	default:
		return AuditEventRefresh
	}
}
