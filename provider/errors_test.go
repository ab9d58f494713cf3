package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestKindOfClassifiesWrappedErrors(t *testing.T) {
	base := NewError(KindEmailExists, "EMAIL_EXISTS", nil)
	wrapped := fmt.Errorf("sign up: %w", base)

	if got := KindOf(wrapped); got != KindEmailExists {
		t.Fatalf("expected KindEmailExists, got %v", got)
	}
	if !errors.Is(wrapped, &Error{Kind: KindEmailExists}) {
		t.Fatal("expected errors.Is to match on kind")
	}
	if errors.Is(wrapped, &Error{Kind: KindWeakPassword}) {
		t.Fatal("expected errors.Is to reject different kind")
	}
	if errors.Is(wrapped, &Error{Kind: KindEmailExists, Code: "OTHER"}) {
		t.Fatal("expected errors.Is to reject different code")
	}
}

func TestKindOfTransportFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "deadline", err: context.DeadlineExceeded, want: KindNetwork},
		{name: "net", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: KindNetwork},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorMessageIncludesCodeAndCause(t *testing.T) {
	err := NewError(KindNetwork, "HTTP_503", errors.New("upstream"))
	want := "provider: network (HTTP_503): upstream"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("expected Unwrap to expose cause")
	}
}

func TestUserIsZero(t *testing.T) {
	if !(User{}).IsZero() {
		t.Fatal("empty user should be zero")
	}
	if (User{ID: "u1"}).IsZero() {
		t.Fatal("user with id should not be zero")
	}
}
