package decoder

import (
	"math"
	"testing"
	"time"
)

func TestResolveTimestamp(t *testing.T) {
	now := time.Date(2025, 10, 28, 14, 30, 45, 0, time.UTC)
	nowSec := uint64(now.Unix())

	tests := []struct {
		name      string
		raw       uint64
		wantKind  TimestampKind
		wantScale TimestampScale
		wantTime  time.Time
	}{
		{
			name:     "zero is absent",
			raw:      0,
			wantKind: TimestampAbsent,
		},
		{
			name:      "seconds",
			raw:       nowSec,
			wantKind:  TimestampResolved,
			wantScale: ScaleSeconds,
			wantTime:  now,
		},
		{
			name:      "milliseconds",
			raw:       nowSec*1e3 + 123,
			wantKind:  TimestampResolved,
			wantScale: ScaleMilliseconds,
			wantTime:  now.Add(123 * time.Millisecond),
		},
		{
			name:      "microseconds",
			raw:       nowSec*1e6 + 456,
			wantKind:  TimestampResolved,
			wantScale: ScaleMicroseconds,
			wantTime:  now.Add(456 * time.Microsecond),
		},
		{
			name:      "nanoseconds",
			raw:       nowSec*1e9 + 789,
			wantKind:  TimestampResolved,
			wantScale: ScaleNanoseconds,
			wantTime:  now.Add(789 * time.Nanosecond),
		},
		{
			name:      "window floor is inclusive",
			raw:       946684800,
			wantKind:  TimestampResolved,
			wantScale: ScaleSeconds,
			wantTime:  time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "less than a day ahead still seconds",
			raw:       nowSec + 23*3600,
			wantKind:  TimestampResolved,
			wantScale: ScaleSeconds,
			wantTime:  now.Add(23 * time.Hour),
		},
		{
			name:     "small value before 2000 in every scale",
			raw:      12345,
			wantKind: TimestampUnresolved,
		},
		{
			name:     "max uint64 beyond window in every scale",
			raw:      math.MaxUint64,
			wantKind: TimestampUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTimestamp(tt.raw, now)
			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Scale != tt.wantScale {
				t.Errorf("Scale = %v, want %v", got.Scale, tt.wantScale)
			}
			if !got.Time.Equal(tt.wantTime) {
				t.Errorf("Time = %v, want %v", got.Time, tt.wantTime)
			}
			if tt.wantKind == TimestampUnresolved && got.Raw != tt.raw {
				t.Errorf("Raw = %d, want passthrough %d", got.Raw, tt.raw)
			}
		})
	}
}

func TestResolveTimestampWallClock(t *testing.T) {
	now := time.Now()
	secs := uint64(now.Unix())

	if got := ResolveTimestamp(secs, now); got.Scale != ScaleSeconds {
		t.Errorf("current seconds classified as %q, want s", got.Scale)
	}
	if got := ResolveTimestamp(secs*1000, now); got.Scale != ScaleMilliseconds {
		t.Errorf("current milliseconds classified as %q, want ms", got.Scale)
	}
}

func TestResolveTimestampFarFutureSecondsFallsThrough(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Two days ahead in seconds is outside the window, and too small for ms.
	raw := uint64(now.Add(48 * time.Hour).Unix())
	got := ResolveTimestamp(raw, now)
	if got.Kind != TimestampUnresolved {
		t.Errorf("Kind = %v, want unresolved", got.Kind)
	}
}

func TestResolveTimestampResultIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	got := ResolveTimestamp(uint64(now.Unix()), now)
	if got.Time.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", got.Time.Location())
	}
}

func TestTimestampLabels(t *testing.T) {
	labels := map[TimestampScale]string{
		ScaleNone:         "",
		ScaleSeconds:      "s",
		ScaleMilliseconds: "ms",
		ScaleMicroseconds: "us",
		ScaleNanoseconds:  "ns",
	}
	for sc, want := range labels {
		if sc.String() != want {
			t.Errorf("%d.String() = %q, want %q", sc, sc.String(), want)
		}
	}
	if TimestampAbsent.String() != "absent" || TimestampUnresolved.String() != "unresolved" {
		t.Error("unexpected TimestampKind labels")
	}
}
