// Package decoder implements detection record decoding.
package decoder

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"firestige.xyz/mcdetect/internal/core"
)

// RecordSize is the packed wire size of one detection record.
const RecordSize = 56

// Field offsets within a record. Little-endian, no padding.
const (
	offLeft               = 0
	offTop                = 4
	offWidth              = 8
	offHeight             = 12
	offClassID            = 16
	offObjectID           = 20
	offConfidence         = 28
	offNTPTimestamp       = 32
	offSourceID           = 40
	offDetectClassID      = 44
	offClassifyClassID    = 48
	offClassifyConfidence = 52
)

// BBox is a bounding box in source image coordinates.
type BBox struct {
	Left   float32 `json:"left" yaml:"left"`
	Top    float32 `json:"top" yaml:"top"`
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// Area returns Width*Height in double precision. It is derived, not transmitted.
func (b BBox) Area() float64 {
	return float64(b.Width) * float64(b.Height)
}

// DetectionRecord is one decoded detection/classification packet.
type DetectionRecord struct {
	BBox               BBox
	ClassID            int32  // Legacy/primary class
	ObjectID           uint64 // Tracker identity, 0 if not filled
	Confidence         float32
	NTPTimestamp       uint64 // Unit not self-describing, see ResolveTimestamp
	SourceID           uint32
	DetectClassID      int32
	ClassifyClassID    int32
	ClassifyConfidence float32
}

// HasObjectID reports whether the tracker filled in an object id.
func (r DetectionRecord) HasObjectID() bool {
	return r.ObjectID != 0
}

// Timestamp interprets NTPTimestamp against now.
func (r DetectionRecord) Timestamp(now time.Time) Timestamp {
	return ResolveTimestamp(r.NTPTimestamp, now)
}

// TooShortError reports a datagram smaller than RecordSize.
type TooShortError struct {
	Got  int
	Want int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("packet too small (%d bytes), expected %d", e.Got, e.Want)
}

// Is makes errors.Is(err, core.ErrPacketTooShort) hold.
func (e *TooShortError) Is(target error) bool {
	return target == core.ErrPacketTooShort
}

// Decode interprets the first RecordSize bytes of data as a DetectionRecord.
// Bytes past RecordSize are ignored. Field values are not range checked.
func Decode(data []byte) (DetectionRecord, error) {
	if len(data) < RecordSize {
		return DetectionRecord{}, &TooShortError{Got: len(data), Want: RecordSize}
	}
	data = data[:RecordSize]

	le := binary.LittleEndian
	return DetectionRecord{
		BBox: BBox{
			Left:   float32At(data, offLeft),
			Top:    float32At(data, offTop),
			Width:  float32At(data, offWidth),
			Height: float32At(data, offHeight),
		},
		ClassID:            int32(le.Uint32(data[offClassID:])),
		ObjectID:           le.Uint64(data[offObjectID:]),
		Confidence:         float32At(data, offConfidence),
		NTPTimestamp:       le.Uint64(data[offNTPTimestamp:]),
		SourceID:           le.Uint32(data[offSourceID:]),
		DetectClassID:      int32(le.Uint32(data[offDetectClassID:])),
		ClassifyClassID:    int32(le.Uint32(data[offClassifyClassID:])),
		ClassifyConfidence: float32At(data, offClassifyConfidence),
	}, nil
}

func float32At(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}
