package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/provider"
)

// State is a snapshot of the session as the controller last applied it.
type State struct {
	SignedIn  bool
	User      provider.User
	LastError ErrorKind
	// Generation increases by one on every applied change.
	Generation uint64
	UpdatedAt  time.Time
}

// Screen names the view a UI should render for s.
func (s State) Screen() string {
	if s.SignedIn {
		return "signed_in"
	}
	return "sign_in"
}

// Subscription delivers State values. A subscriber that falls behind only
// sees the latest value. C is closed by Close or when the controller closes.
type Subscription struct {
	C      <-chan State
	cancel func()
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}
