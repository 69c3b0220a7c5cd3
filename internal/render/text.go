package render

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
)

const separator = "------------------------------------------------------------"

type textRenderer struct {
	w    io.Writer
	opts Options
}

func (r *textRenderer) Record(d core.Datagram, rec decoder.DetectionRecord) error {
	if r.opts.Quiet {
		_, err := fmt.Fprintf(r.w,
			"ts=%.6f src=%s det=%d cls=%d dconf=%.3f cconf=%.3f bbox=(%.1f,%.1f,%.1f,%.1f) src_id=%d\n",
			unixSeconds(d.ReceivedAt), d.Source,
			rec.DetectClassID, rec.ClassifyClassID,
			rec.Confidence, rec.ClassifyConfidence,
			rec.BBox.Left, rec.BBox.Top, rec.BBox.Width, rec.BBox.Height,
			rec.SourceID)
		return err
	}

	var b strings.Builder
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Received from %s bytes=%d\n", d.Source, d.Len())
	fmt.Fprintf(&b, " Local recv time: %s\n", d.ReceivedAt.Local().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, " Detection Class ID (legacy/class_id): %d\n", rec.ClassID)
	fmt.Fprintf(&b, " Detect Class ID (explicit): %d\n", rec.DetectClassID)
	fmt.Fprintf(&b, " Classification ID: %d\n", rec.ClassifyClassID)
	fmt.Fprintf(&b, " Classification Confidence: %.4f\n", rec.ClassifyConfidence)
	fmt.Fprintf(&b, " Object ID: %s\n", objectID(rec))
	fmt.Fprintf(&b, " Detection Confidence: %.4f\n", rec.Confidence)
	fmt.Fprintf(&b, " Source ID: %d\n", rec.SourceID)
	fmt.Fprintf(&b, " NTP Timestamp: %d -> %s\n", rec.NTPTimestamp, formatTimestamp(resolve(d, rec)))
	fmt.Fprintf(&b, " BBox: left=%.1f top=%.1f w=%.1f h=%.1f area=%.1f\n",
		rec.BBox.Left, rec.BBox.Top, rec.BBox.Width, rec.BBox.Height, rec.BBox.Area())
	if r.opts.Hex {
		fmt.Fprintf(&b, " Raw Hex: %s\n", recordHex(d.Payload))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *textRenderer) DecodeError(d core.Datagram, err error) error {
	line := fmt.Sprintf("[WARN] %s len=%d decode error: %v\n", d.Source, d.Len(), err)
	if r.opts.Hex {
		line += hex.EncodeToString(d.Payload) + "\n"
	}
	_, werr := io.WriteString(r.w, line)
	return werr
}

func objectID(rec decoder.DetectionRecord) string {
	if !rec.HasObjectID() {
		return "absent"
	}
	return strconv.FormatUint(rec.ObjectID, 10)
}

func formatTimestamp(ts decoder.Timestamp) string {
	switch ts.Kind {
	case decoder.TimestampAbsent:
		return "absent"
	case decoder.TimestampResolved:
		return fmt.Sprintf("%s (~%s)", ts.Time.Local().Format(time.RFC3339Nano), ts.Scale)
	default:
		return strconv.FormatUint(ts.Raw, 10)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
