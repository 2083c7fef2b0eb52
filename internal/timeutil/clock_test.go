package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	before := time.Now()
	now := RealClock{}.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClockTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClockSetAndAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("expected %v, got %v", start, got)
	}

	c.Advance(time.Minute)
	if got := c.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("expected %v, got %v", start.Add(time.Minute), got)
	}

	later := start.Add(time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("expected %v, got %v", later, got)
	}
}

func TestMockTickerFiresOnPeriod(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case tick := <-ticker.C():
		if !tick.Equal(time.Unix(0, 0).Add(100 * time.Millisecond)) {
			t.Errorf("unexpected tick time %v", tick)
		}
	default:
		t.Fatal("ticker did not fire")
	}
}

func TestMockTickerDoesNotQueue(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Millisecond)

	for i := 0; i < 5; i++ {
		c.Advance(time.Millisecond)
	}
	if n := len(ticker.C()); n != 1 {
		t.Errorf("expected 1 pending tick, got %d", n)
	}
}

func TestMockTickerStop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Millisecond)
	ticker.Stop()

	c.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestWaitForTicker(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	if c.WaitForTicker(time.Millisecond) {
		t.Error("expected no ticker yet")
	}

	go c.NewTicker(time.Second)
	if !c.WaitForTicker(time.Second) {
		t.Error("expected ticker to be observed")
	}
}
