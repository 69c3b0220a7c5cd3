// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsReceivedTotal counts datagrams handed over by a source
	DatagramsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcdetect_datagrams_received_total",
			Help: "Total number of datagrams received",
		},
		[]string{"source"},
	)

	// DatagramBytes tracks the payload size distribution
	DatagramBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcdetect_datagram_bytes",
			Help:    "Size of received datagram payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(8, 2, 9), // 8 to 2048
		},
		[]string{"source"},
	)

	// RecordsDecodedTotal counts datagrams decoded into a detection record
	RecordsDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcdetect_records_decoded_total",
			Help: "Total number of detection records decoded",
		},
		[]string{"source"},
	)

	// DecodeErrorsTotal counts datagrams that could not be decoded
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcdetect_decode_errors_total",
			Help: "Total number of datagrams that failed to decode",
		},
		[]string{"source", "reason"},
	)

	// RenderErrorsTotal counts failures writing operator output
	RenderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcdetect_render_errors_total",
			Help: "Total number of render failures",
		},
		[]string{"source"},
	)

	// ReceiverRunning is 1 while a receive loop is active
	ReceiverRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcdetect_receiver_running",
			Help: "Whether the receive loop is running (0=stopped, 1=running)",
		},
		[]string{"source"},
	)
)

// Decode error reasons used as the "reason" label.
const (
	ReasonTooShort = "too_short"
	ReasonOther    = "other"
)
