package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/mcdetect/internal/config"
	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/render"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestSink(w *fakeWriter, withHex bool) *Sink {
	return &Sink{writer: w, topic: "detections", withHex: withHex, logger: log.GetLogger()}
}

func sampleDatagram(n int) core.Datagram {
	return core.Datagram{
		Payload:    make([]byte, n),
		Source:     netip.MustParseAddrPort("10.0.0.5:40000"),
		ReceivedAt: time.Unix(1761660000, 0),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.KafkaConfig
		wantErr bool
	}{
		{name: "missing brokers", cfg: config.KafkaConfig{Topic: "t"}, wantErr: true},
		{name: "missing topic", cfg: config.KafkaConfig{Brokers: []string{"localhost:9092"}}, wantErr: true},
		{name: "invalid compression", cfg: config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "brotli"}, wantErr: true},
		{name: "minimal", cfg: config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}},
		{name: "full", cfg: config.KafkaConfig{
			Brokers:      []string{"b1:9092", "b2:9092"},
			Topic:        "t",
			BatchSize:    200,
			BatchTimeout: 200 * time.Millisecond,
			Compression:  "gzip",
			MaxAttempts:  5,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrConfigInvalid)
				return
			}
			require.NoError(t, err)
			// Nothing was written, so closing does not dial a broker.
			assert.NoError(t, s.Close())
		})
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	defer s.Close()

	w := s.writer.(*kafka.Writer)
	assert.Equal(t, defaultBatchSize, w.BatchSize)
	assert.Equal(t, defaultBatchTimeout, w.BatchTimeout)
	assert.Equal(t, defaultMaxAttempts, w.MaxAttempts)
	assert.Equal(t, compress.Snappy, w.Compression)
	assert.True(t, w.Async)
}

func TestRecordMessage(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSink(w, true)

	rec := decoder.DetectionRecord{SourceID: 12, ClassID: 3, BBox: decoder.BBox{Width: 2, Height: 3}}
	require.NoError(t, s.Record(sampleDatagram(56), rec))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "12", string(msg.Key))
	assert.True(t, msg.Time.Equal(time.Unix(1761660000, 0)))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event", Value: []byte(render.EventRecord)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "sender", Value: []byte("10.0.0.5:40000")})

	var ev render.Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	require.NotNil(t, ev.Record)
	assert.Equal(t, uint32(12), ev.Record.SourceID)
	assert.Equal(t, render.Float64(6), ev.Record.BBox.Area)
	assert.Len(t, ev.Hex, 2*decoder.RecordSize)
}

func TestRecordMessageNonFinite(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSink(w, false)

	rec := decoder.DetectionRecord{
		SourceID:   4,
		Confidence: float32(math.NaN()),
		BBox:       decoder.BBox{Width: float32(math.Inf(1)), Height: 1},
	}
	require.NoError(t, s.Record(sampleDatagram(56), rec))

	require.Len(t, w.msgs, 1)
	var ev render.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	require.NotNil(t, ev.Record)
	assert.True(t, math.IsNaN(float64(ev.Record.Confidence)))
	assert.True(t, math.IsInf(float64(ev.Record.BBox.Area), 1))
}

func TestDecodeErrorMessage(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSink(w, false)

	require.NoError(t, s.DecodeError(sampleDatagram(3), &decoder.TooShortError{Got: 3, Want: 56}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "10.0.0.5:40000", string(w.msgs[0].Key))
	var ev render.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, render.EventDecodeError, ev.Event)
	assert.Empty(t, ev.Hex)
}

func TestWriteFailureAndCompletion(t *testing.T) {
	w := &fakeWriter{err: errors.New("queue full")}
	s := newTestSink(w, false)

	err := s.Record(sampleDatagram(56), decoder.DetectionRecord{})
	assert.ErrorContains(t, err, "kafka write failed")
	assert.Equal(t, uint64(1), s.Errors())

	s.completed(make([]kafka.Message, 3), nil)
	assert.Equal(t, uint64(3), s.Reported())
	s.completed(make([]kafka.Message, 2), errors.New("broker down"))
	assert.Equal(t, uint64(3), s.Errors())

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}
