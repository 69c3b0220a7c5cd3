// Package render turns decoded detection records into operator output.
package render

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Renderer consumes one event per received datagram.
type Renderer interface {
	// Record renders a successfully decoded datagram.
	Record(d core.Datagram, rec decoder.DetectionRecord) error
	// DecodeError renders a datagram that could not be decoded.
	DecodeError(d core.Datagram, err error) error
}

// Options are the display toggles shared by every format.
type Options struct {
	Hex   bool // Include the payload as hex
	Quiet bool // One line per record (text only)
}

// New returns the renderer for format writing to w. An empty format selects text.
func New(format string, opts Options, w io.Writer) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return &textRenderer{w: w, opts: opts}, nil
	case FormatJSON:
		return newJSONRenderer(w, opts), nil
	case FormatYAML:
		return newYAMLRenderer(w, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q, must be text, json or yaml", core.ErrUnknownFormat, format)
	}
}

// recordHex returns the hex of the bytes a record was decoded from.
func recordHex(payload []byte) string {
	if len(payload) > decoder.RecordSize {
		payload = payload[:decoder.RecordSize]
	}
	return hex.EncodeToString(payload)
}

// resolve interprets the record timestamp relative to the receive time, so a
// replayed capture resolves the way it did live.
func resolve(d core.Datagram, rec decoder.DetectionRecord) decoder.Timestamp {
	now := d.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}
	return rec.Timestamp(now)
}
