package render

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
)

// Event kinds carried in the "event" field.
const (
	EventRecord      = "record"
	EventDecodeError = "decode_error"
)

// Event is the document emitted per datagram by the json and yaml formats.
type Event struct {
	Event      string      `json:"event" yaml:"event"`
	ReceivedAt time.Time   `json:"received_at" yaml:"received_at"`
	Source     string      `json:"source" yaml:"source"`
	Length     int         `json:"length" yaml:"length"`
	Record     *RecordView `json:"record,omitempty" yaml:"record,omitempty"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	Hex        string      `json:"hex,omitempty" yaml:"hex,omitempty"`
}

// RecordView is a DetectionRecord with its derived fields filled in.
type RecordView struct {
	BBox               BBoxView      `json:"bbox" yaml:"bbox"`
	ClassID            int32         `json:"class_id" yaml:"class_id"`
	ObjectID           *uint64       `json:"object_id" yaml:"object_id"`
	Confidence         Float32       `json:"confidence" yaml:"confidence"`
	NTPTimestamp       uint64        `json:"ntp_timestamp" yaml:"ntp_timestamp"`
	Timestamp          TimestampView `json:"timestamp" yaml:"timestamp"`
	SourceID           uint32        `json:"source_id" yaml:"source_id"`
	DetectClassID      int32         `json:"detect_class_id" yaml:"detect_class_id"`
	ClassifyClassID    int32         `json:"classify_class_id" yaml:"classify_class_id"`
	ClassifyConfidence Float32       `json:"classify_confidence" yaml:"classify_confidence"`
}

// BBoxView is a bounding box plus its area.
type BBoxView struct {
	Left   Float32 `json:"left" yaml:"left"`
	Top    Float32 `json:"top" yaml:"top"`
	Width  Float32 `json:"width" yaml:"width"`
	Height Float32 `json:"height" yaml:"height"`
	Area   Float64 `json:"area" yaml:"area"`
}

// TimestampView is the interpreted ntp_timestamp.
type TimestampView struct {
	Kind  string     `json:"kind" yaml:"kind"`
	Scale string     `json:"scale,omitempty" yaml:"scale,omitempty"`
	Time  *time.Time `json:"time,omitempty" yaml:"time,omitempty"`
}

func newRecordView(d core.Datagram, rec decoder.DetectionRecord) *RecordView {
	v := &RecordView{
		BBox: BBoxView{
			Left:   Float32(rec.BBox.Left),
			Top:    Float32(rec.BBox.Top),
			Width:  Float32(rec.BBox.Width),
			Height: Float32(rec.BBox.Height),
			Area:   Float64(rec.BBox.Area()),
		},
		ClassID:            rec.ClassID,
		Confidence:         Float32(rec.Confidence),
		NTPTimestamp:       rec.NTPTimestamp,
		SourceID:           rec.SourceID,
		DetectClassID:      rec.DetectClassID,
		ClassifyClassID:    rec.ClassifyClassID,
		ClassifyConfidence: Float32(rec.ClassifyConfidence),
	}
	if rec.HasObjectID() {
		id := rec.ObjectID
		v.ObjectID = &id
	}
	ts := resolve(d, rec)
	v.Timestamp.Kind = ts.Kind.String()
	if ts.Kind == decoder.TimestampResolved {
		t := ts.Time
		v.Timestamp.Scale = ts.Scale.String()
		v.Timestamp.Time = &t
	}
	return v
}

func newEvent(d core.Datagram, kind string) Event {
	return Event{
		Event:      kind,
		ReceivedAt: d.ReceivedAt,
		Source:     d.Source.String(),
		Length:     d.Len(),
	}
}

// NewRecordEvent builds the document for a decoded record. withHex adds the
// bytes the record was decoded from.
func NewRecordEvent(d core.Datagram, rec decoder.DetectionRecord, withHex bool) Event {
	ev := newEvent(d, EventRecord)
	ev.Record = newRecordView(d, rec)
	if withHex {
		ev.Hex = recordHex(d.Payload)
	}
	return ev
}

// NewDecodeErrorEvent builds the document for an undecodable datagram.
// withHex adds the whole payload.
func NewDecodeErrorEvent(d core.Datagram, err error, withHex bool) Event {
	ev := newEvent(d, EventDecodeError)
	ev.Error = err.Error()
	if withHex {
		ev.Hex = hex.EncodeToString(d.Payload)
	}
	return ev
}

// documentEncoder is satisfied by json.Encoder and yaml.Encoder.
type documentEncoder interface {
	Encode(v any) error
}

type structuredRenderer struct {
	enc  documentEncoder
	opts Options
}

// Close terminates the document stream. Only the yaml encoder holds state.
func (r *structuredRenderer) Close() error {
	if c, ok := r.enc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func newJSONRenderer(w io.Writer, opts Options) *structuredRenderer {
	return &structuredRenderer{enc: json.NewEncoder(w), opts: opts}
}

func newYAMLRenderer(w io.Writer, opts Options) *structuredRenderer {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &structuredRenderer{enc: enc, opts: opts}
}

func (r *structuredRenderer) Record(d core.Datagram, rec decoder.DetectionRecord) error {
	return r.encode(NewRecordEvent(d, rec, r.opts.Hex))
}

func (r *structuredRenderer) DecodeError(d core.Datagram, err error) error {
	return r.encode(NewDecodeErrorEvent(d, err, r.opts.Hex))
}

func (r *structuredRenderer) encode(ev Event) error {
	if err := r.enc.Encode(ev); err != nil {
		return fmt.Errorf("encode %s event failed: %w", ev.Event, err)
	}
	return nil
}
