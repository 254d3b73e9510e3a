package websocket

import (
	"testing"
	"time"
)

func TestBackoffNextGrowsAndCaps(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.Next(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Second, Factor: 2, Jitter: 0.2}
	for range 100 {
		got := b.Next(1)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jittered backoff out of range: %v", got)
		}
	}
}
