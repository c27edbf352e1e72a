package nav

import (
	"testing"
	"time"
)

func TestLockStateMissReleasesAfterLimit(t *testing.T) {
	var l LockState
	l.Acquire(3, time.Now())

	for i := 0; i < 4; i++ {
		if released := l.Miss(5); released {
			t.Fatalf("lock released after %d misses, limit is 5", i+1)
		}
	}
	if !l.Locked || l.LostFrames != 4 {
		t.Fatalf("lock = %+v, want held with 4 misses", l)
	}

	if !l.Miss(5) {
		t.Fatal("expected release on the fifth miss")
	}
	if l.Locked || l.ID != 0 || l.LostFrames != 0 {
		t.Errorf("lock = %+v, want cleared", l)
	}
}

func TestLockStateSeenResetsMisses(t *testing.T) {
	var l LockState
	l.Acquire(1, time.Now())
	l.Miss(5)
	l.Miss(5)
	l.Seen()
	if l.LostFrames != 0 {
		t.Errorf("LostFrames = %d after Seen, want 0", l.LostFrames)
	}
}

func TestLockStateMissWithoutLock(t *testing.T) {
	var l LockState
	if l.Miss(5) {
		t.Error("Miss on an unheld lock must not report a release")
	}
}
