package decoder

import (
	"strconv"
	"time"
)

// TimestampKind tags the result of ResolveTimestamp.
type TimestampKind int

const (
	// TimestampAbsent means the raw value was 0.
	TimestampAbsent TimestampKind = iota
	// TimestampResolved means a scale put the value in the plausible window.
	TimestampResolved
	// TimestampUnresolved means no scale did; Raw is the only meaningful field.
	TimestampUnresolved
)

func (k TimestampKind) String() string {
	switch k {
	case TimestampAbsent:
		return "absent"
	case TimestampResolved:
		return "resolved"
	case TimestampUnresolved:
		return "unresolved"
	default:
		return "TimestampKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// TimestampScale is the unit a raw timestamp was interpreted in.
type TimestampScale int

const (
	ScaleNone TimestampScale = iota
	ScaleSeconds
	ScaleMilliseconds
	ScaleMicroseconds
	ScaleNanoseconds
)

// String returns the short unit label used in operator output.
func (s TimestampScale) String() string {
	switch s {
	case ScaleSeconds:
		return "s"
	case ScaleMilliseconds:
		return "ms"
	case ScaleMicroseconds:
		return "us"
	case ScaleNanoseconds:
		return "ns"
	default:
		return ""
	}
}

// Timestamp is the tagged result of interpreting an opaque 64-bit timestamp.
type Timestamp struct {
	Kind  TimestampKind
	Scale TimestampScale // Set only when Kind == TimestampResolved
	Time  time.Time      // UTC, set only when Kind == TimestampResolved
	Raw   uint64
}

// plausibleFloor is the lower edge of the window a resolved timestamp must fall in.
var plausibleFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// plausibleSlack extends the upper edge past now to tolerate clock skew.
const plausibleSlack = 24 * time.Hour

// scales is checked in order; the first match wins.
var scales = []struct {
	scale   TimestampScale
	perSec  uint64
	nsScale int64
}{
	{ScaleSeconds, 1, 1e9},
	{ScaleMilliseconds, 1e3, 1e6},
	{ScaleMicroseconds, 1e6, 1e3},
	{ScaleNanoseconds, 1e9, 1},
}

// ResolveTimestamp guesses the unit of raw by trying seconds, milliseconds,
// microseconds and nanoseconds since the Unix epoch, in that order, and accepting
// the first one that lands in [2000-01-01 UTC, now+24h]. Zero is reported absent;
// a value no scale can place is passed through unresolved.
func ResolveTimestamp(raw uint64, now time.Time) Timestamp {
	if raw == 0 {
		return Timestamp{Kind: TimestampAbsent}
	}
	ceiling := now.Add(plausibleSlack)
	for _, sc := range scales {
		secs := raw / sc.perSec
		// Also keeps the int64 conversion below from overflowing.
		if secs > uint64(ceiling.Unix()) {
			continue
		}
		frac := int64(raw%sc.perSec) * sc.nsScale
		t := time.Unix(int64(secs), frac).UTC()
		if t.Before(plausibleFloor) || t.After(ceiling) {
			continue
		}
		return Timestamp{Kind: TimestampResolved, Scale: sc.scale, Time: t, Raw: raw}
	}
	return Timestamp{Kind: TimestampUnresolved, Raw: raw}
}
