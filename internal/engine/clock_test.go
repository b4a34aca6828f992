package engine

import (
	"testing"
	"time"
)

func TestFakeClockFiresInOrder(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(time.Unix(0, 0))
	var fired []string
	c.AfterFunc(5*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(2*time.Second, func() {
		fired = append(fired, "a")
		c.AfterFunc(time.Second, func() { fired = append(fired, "nested") })
	})
	stopped := c.AfterFunc(4*time.Second, func() { fired = append(fired, "stopped") })
	if !stopped.Stop() {
		t.Fatal("Stop on pending timer = false, want true")
	}

	c.Advance(4 * time.Second)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "nested" {
		t.Fatalf("fired after 4s = %v, want [a nested]", fired)
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}

	c.Advance(time.Second)
	if len(fired) != 3 || fired[2] != "b" {
		t.Fatalf("fired after 5s = %v, want [a nested b]", fired)
	}
	if got := c.Now(); !got.Equal(time.Unix(5, 0)) {
		t.Fatalf("Now = %v, want 5s", got)
	}
	if stopped.Stop() {
		t.Fatal("second Stop = true, want false")
	}
}

func TestScriptDrainsThenHits(t *testing.T) {
	t.Parallel()

	s := &Script{Floats: []float64{0.9}, Ints: []int{7}}
	if got := s.Float64(); got != 0.9 {
		t.Fatalf("Float64 = %v, want 0.9", got)
	}
	if got := s.Float64(); got != 0 {
		t.Fatalf("drained Float64 = %v, want 0", got)
	}
	if got := s.Intn(3); got != 2 {
		t.Fatalf("Intn clamps to n-1: got %d, want 2", got)
	}
}
