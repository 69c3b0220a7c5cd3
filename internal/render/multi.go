package render

import (
	"errors"
	"io"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
)

// Multi fans every event out to all renderers. Every renderer sees every
// event; their errors are joined.
type Multi []Renderer

func (m Multi) Record(d core.Datagram, rec decoder.DetectionRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(d, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) DecodeError(d core.Datagram, err error) error {
	var errs []error
	for _, r := range m {
		if rerr := r.DecodeError(d, err); rerr != nil {
			errs = append(errs, rerr)
		}
	}
	return errors.Join(errs...)
}

// Close closes the renderers that hold resources.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
