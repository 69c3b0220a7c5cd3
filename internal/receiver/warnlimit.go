package receiver

import (
	"net/netip"
	"time"
)

// warnLimiter caps decode-failure warnings per sender address per window so a
// misbehaving sender cannot flood the log. Counting and rendering are not
// affected. Only the receive goroutine touches it.
type warnLimiter struct {
	current      map[netip.Addr]int
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int
	suppressed   uint64 // in the current window
}

// newWarnLimiter returns nil when maxPerWindow <= 0, which disables limiting.
func newWarnLimiter(maxPerWindow int, window time.Duration) *warnLimiter {
	if maxPerWindow <= 0 {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &warnLimiter{
		current:      make(map[netip.Addr]int),
		windowSize:   window,
		maxPerWindow: maxPerWindow,
	}
}

// allow reports whether a warning for sender may be logged at now. When a
// window rotates it also returns how many warnings the previous one dropped.
func (l *warnLimiter) allow(sender netip.Addr, now time.Time) (ok bool, dropped uint64) {
	if l == nil {
		return true, 0
	}
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.windowSize {
		dropped = l.suppressed
		clear(l.current)
		l.windowStart = now
		l.suppressed = 0
	}

	l.current[sender]++
	if l.current[sender] > l.maxPerWindow {
		l.suppressed++
		return false, dropped
	}
	return true, dropped
}
