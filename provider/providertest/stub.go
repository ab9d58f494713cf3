// Package providertest provides a scriptable in-memory provider.Client.
//
// A Stub answers every call from its configured results and records the
// calls it saw. Gate lets a test hold a call open until it releases it, which
// is how ordering between concurrent controller operations is observed.
package providertest

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/provider"
)

// Call is one recorded invocation.
type Call struct {
	Method string
	Email  string
}

// Stub is a provider.Client whose answers are set by the test.
type Stub struct {
	mu sync.Mutex

	signInUser provider.User
	signInErr  error
	signUpUser provider.User
	signUpErr  error
	signOutErr error
	current    provider.User
	hasCurrent bool
	gates      map[string]chan struct{}
	entered    map[string]chan struct{}
	calls      []Call
}

// New returns a Stub whose sign-in and sign-up succeed with a fixed user and
// whose sign-out succeeds.
func New() *Stub {
	u := provider.User{ID: "stub-user", Email: "a@b.com", Provider: "stub"}
	return &Stub{
		signInUser: u,
		signUpUser: u,
		gates:      map[string]chan struct{}{},
		entered:    map[string]chan struct{}{},
	}
}

// Name implements provider.Client.
func (s *Stub) Name() string { return "stub" }

// SucceedSignIn makes SignIn return u.
func (s *Stub) SucceedSignIn(u provider.User) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signInUser, s.signInErr = u, nil
	return s
}

// FailSignIn makes SignIn return err.
func (s *Stub) FailSignIn(err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signInErr = err
	return s
}

// SucceedSignUp makes SignUp return u.
func (s *Stub) SucceedSignUp(u provider.User) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signUpUser, s.signUpErr = u, nil
	return s
}

// FailSignUp makes SignUp return err.
func (s *Stub) FailSignUp(err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signUpErr = err
	return s
}

// FailSignOut makes SignOut return err.
func (s *Stub) FailSignOut(err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOutErr = err
	return s
}

// SetCurrentUser sets what CurrentUser reports. A zero user means none.
func (s *Stub) SetCurrentUser(u provider.User) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = u
	s.hasCurrent = !u.IsZero()
	return s
}

// Gate blocks the next calls to method ("SignIn", "SignUp", "SignOut")
// until the returned release func is called. Entered returns a channel that
// is closed once a call has reached the gate.
func (s *Stub) Gate(method string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[method] = ch
	if prev, ok := s.entered[method]; !ok || isClosed(prev) {
		s.entered[method] = make(chan struct{})
	}
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Entered returns a channel closed when a gated call to method has started.
func (s *Stub) Entered(method string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.entered[method]
	if !ok {
		ch = make(chan struct{})
		s.entered[method] = ch
	}
	return ch
}

// Calls returns the recorded calls in order.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// SignIn implements provider.Client.
func (s *Stub) SignIn(ctx context.Context, email, password string) (provider.User, error) {
	if err := s.enter(ctx, "SignIn", email); err != nil {
		return provider.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signInErr != nil {
		return provider.User{}, s.signInErr
	}
	u := s.signInUser
	u.SignedInAt = time.Now()
	s.current, s.hasCurrent = u, true
	return u, nil
}

// SignUp implements provider.Client.
func (s *Stub) SignUp(ctx context.Context, email, password string) (provider.User, error) {
	if err := s.enter(ctx, "SignUp", email); err != nil {
		return provider.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signUpErr != nil {
		return provider.User{}, s.signUpErr
	}
	u := s.signUpUser
	u.SignedInAt = time.Now()
	s.current, s.hasCurrent = u, true
	return u, nil
}

// SignOut implements provider.Client.
func (s *Stub) SignOut(ctx context.Context) error {
	if err := s.enter(ctx, "SignOut", ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signOutErr != nil {
		return s.signOutErr
	}
	s.current, s.hasCurrent = provider.User{}, false
	return nil
}

// CurrentUser implements provider.Client.
func (s *Stub) CurrentUser(context.Context) (provider.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "CurrentUser"})
	return s.current, s.hasCurrent
}

func (s *Stub) enter(ctx context.Context, method, email string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Email: email})
	gate := s.gates[method]
	delete(s.gates, method)
	if entered := s.entered[method]; gate != nil && entered != nil && !isClosed(entered) {
		close(entered)
	}
	s.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

var _ provider.Client = (*Stub)(nil)
