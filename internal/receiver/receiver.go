// Package receiver runs the receive, decode and render loop over one source.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/metrics"
	"firestige.xyz/mcdetect/internal/render"
	"firestige.xyz/mcdetect/internal/source"
)

// Stats is a snapshot of the loop counters.
type Stats struct {
	Received     uint64
	Decoded      uint64
	TooShort     uint64
	RenderErrors uint64
}

// Receiver owns a source for the duration of Run. Run is not reentrant.
type Receiver struct {
	src      source.Source
	renderer render.Renderer
	name     string
	logger   log.Logger
	warns    *warnLimiter

	received     atomic.Uint64
	decoded      atomic.Uint64
	tooShort     atomic.Uint64
	renderErrors atomic.Uint64
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithName sets the "source" label used in logs and metrics. Default "multicast".
func WithName(name string) Option {
	return func(r *Receiver) {
		r.name = name
	}
}

// WithLogger replaces the global logger.
func WithLogger(l log.Logger) Option {
	return func(r *Receiver) {
		r.logger = l
	}
}

// WithWarnLimit logs at most n decode-failure warnings per sender address
// per window. n <= 0 logs every failure, which is the default.
func WithWarnLimit(n int, window time.Duration) Option {
	return func(r *Receiver) {
		r.warns = newWarnLimiter(n, window)
	}
}

// New creates a receiver reading from src and writing to r.
func New(src source.Source, r render.Renderer, opts ...Option) *Receiver {
	rc := &Receiver{
		src:      src,
		renderer: r,
		name:     "multicast",
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.logger == nil {
		rc.logger = log.GetLogger()
	}
	rc.logger = rc.logger.WithField("source", rc.name)
	return rc
}

// Run loops until ctx is cancelled, the source is exhausted, or a receive
// error occurs. Cancellation closes the source, which unblocks Receive; that
// and end of input return nil. Run always closes the source before returning.
func (r *Receiver) Run(ctx context.Context) error {
	metrics.ReceiverRunning.WithLabelValues(r.name).Set(1)
	defer metrics.ReceiverRunning.WithLabelValues(r.name).Set(0)

	var closeOnce sync.Once
	closeSource := func() {
		closeOnce.Do(func() {
			if err := r.src.Close(); err != nil {
				r.logger.WithError(err).Warn("failed to close source")
			}
		})
	}
	defer closeSource()

	stop := context.AfterFunc(ctx, closeSource)
	defer stop()

	for {
		d, err := r.src.Receive()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				r.logger.WithFields(log.Fields{
					"received":  r.received.Load(),
					"decoded":   r.decoded.Load(),
					"too_short": r.tooShort.Load(),
				}).Info("receiver stopped")
				return nil
			}
			return fmt.Errorf("receive failed: %w", err)
		}
		r.handle(d)
	}
}

// handle decodes and renders one datagram. Nothing in here stops the loop.
func (r *Receiver) handle(d core.Datagram) {
	r.received.Add(1)
	metrics.DatagramsReceivedTotal.WithLabelValues(r.name).Inc()
	metrics.DatagramBytes.WithLabelValues(r.name).Observe(float64(d.Len()))

	rec, err := decoder.Decode(d.Payload)
	if err != nil {
		reason := metrics.ReasonOther
		if errors.Is(err, core.ErrPacketTooShort) {
			reason = metrics.ReasonTooShort
			r.tooShort.Add(1)
		}
		metrics.DecodeErrorsTotal.WithLabelValues(r.name, reason).Inc()
		r.warnDecode(d, err)
		if rerr := r.renderer.DecodeError(d, err); rerr != nil {
			r.renderFailed(rerr)
		}
		return
	}

	r.decoded.Add(1)
	metrics.RecordsDecodedTotal.WithLabelValues(r.name).Inc()
	if err := r.renderer.Record(d, rec); err != nil {
		r.renderFailed(err)
	}
}

func (r *Receiver) warnDecode(d core.Datagram, err error) {
	ok, dropped := r.warns.allow(d.Source.Addr(), time.Now())
	if dropped > 0 {
		r.logger.WithField("suppressed", dropped).Warn("decode warnings suppressed in previous window")
	}
	if !ok {
		return
	}
	r.logger.WithFields(log.Fields{
		"sender":   d.Source.String(),
		"length":   d.Len(),
		"required": decoder.RecordSize,
	}).WithError(err).Warn("dropping undecodable datagram")
}

func (r *Receiver) renderFailed(err error) {
	r.renderErrors.Add(1)
	metrics.RenderErrorsTotal.WithLabelValues(r.name).Inc()
	r.logger.WithError(err).Error("render failed")
}

// Stats returns the counters accumulated so far.
func (r *Receiver) Stats() Stats {
	return Stats{
		Received:     r.received.Load(),
		Decoded:      r.decoded.Load(),
		TooShort:     r.tooShort.Load(),
		RenderErrors: r.renderErrors.Load(),
	}
}
