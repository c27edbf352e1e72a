package nav

import "time"

// LockState is the per-session marker-lock bookkeeping: which marker is
// currently tracked, since when, and how many consecutive frames it has
// been missing.
type LockState struct {
	ID         int
	Locked     bool
	Since      time.Time
	LostFrames int
}

// Acquire locks onto a marker.
func (l *LockState) Acquire(id int, now time.Time) {
	l.ID = id
	l.Locked = true
	l.Since = now
	l.LostFrames = 0
}

// Seen resets the lost-frame counter after the locked marker was observed.
func (l *LockState) Seen() {
	l.LostFrames = 0
}

// Miss records one frame without the locked marker. When the miss count
// reaches maxLost the lock is released and Miss returns true.
func (l *LockState) Miss(maxLost int) bool {
	if !l.Locked {
		return false
	}
	l.LostFrames++
	if l.LostFrames >= maxLost {
		l.Release()
		return true
	}
	return false
}

// Release clears the lock.
func (l *LockState) Release() {
	l.ID = 0
	l.Locked = false
	l.Since = time.Time{}
	l.LostFrames = 0
}
