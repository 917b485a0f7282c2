package clock

import (
	"testing"
	"time"
)

func TestManualClock_Advance(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(90 * time.Second)

	if got, want := c.Now(), start.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now()=%v want=%v", got, want)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() after Set=%v want=%v", got, start)
	}
}
