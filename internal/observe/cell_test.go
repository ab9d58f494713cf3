package observe

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesCurrentValue(t *testing.T) {
	c := New(7)
	ch, cancel := c.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		if v != 7 {
			t.Fatalf("expected 7, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("expected initial value")
	}
}

func TestStoreCoalescesUnreadValues(t *testing.T) {
	c := New(0)
	ch, cancel := c.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		c.Store(i)
	}

	v := <-ch
	if v != 5 {
		t.Fatalf("expected latest value 5, got %d", v)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected no further values, got %d", extra)
	default:
	}
	if c.Load() != 5 {
		t.Fatalf("Load = %d, want 5", c.Load())
	}
}

func TestCancelClosesChannelOnce(t *testing.T) {
	c := New("a")
	ch, cancel := c.Subscribe()
	<-ch

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if c.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", c.Subscribers())
	}

	c.Store("b")
}

func TestCloseAllDetachesEverySubscriber(t *testing.T) {
	c := New(1)
	a, cancelA := c.Subscribe()
	b, _ := c.Subscribe()
	<-a
	<-b

	c.CloseAll()
	cancelA()

	if _, ok := <-a; ok {
		t.Fatal("expected a closed")
	}
	if _, ok := <-b; ok {
		t.Fatal("expected b closed")
	}
}

func TestSubscribeAfterCloseAllReturnsClosedChannel(t *testing.T) {
	c := New(3)
	c.CloseAll()

	ch, cancel := c.Subscribe()
	defer cancel()

	v, ok := <-ch
	if !ok || v != 3 {
		t.Fatalf("expected last value 3, got %d ok=%v", v, ok)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription after CloseAll was never closed")
	}
	if n := c.Subscribers(); n != 0 {
		t.Fatalf("expected no attached subscribers, got %d", n)
	}
}

func TestConcurrentReadersSeeFinalValue(t *testing.T) {
	c := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := c.Subscribe()
			defer cancel()
			for v := range ch {
				if v == 100 {
					return
				}
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		c.Store(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscribers did not observe final value")
	}
}
