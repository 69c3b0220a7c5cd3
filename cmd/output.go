package cmd

import (
	"io"

	"firestige.xyz/mcdetect/internal/config"
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/render"
	"firestige.xyz/mcdetect/internal/sink/kafka"
)

// newOutput builds the operator renderer on w, fanned out to the configured
// forwarding sinks.
func newOutput(cfg *config.Config, w io.Writer) (render.Renderer, error) {
	r, err := render.New(cfg.Display.Format, render.Options{Hex: cfg.Display.Hex, Quiet: cfg.Display.Quiet}, w)
	if err != nil {
		return nil, err
	}
	if !cfg.Forward.Kafka.Enabled {
		return r, nil
	}

	sink, err := kafka.New(cfg.Forward.Kafka)
	if err != nil {
		closeOutput(r)
		return nil, err
	}
	return render.Multi{r, sink}, nil
}

// closeOutput flushes renderers that hold state, such as the yaml stream
// or a kafka writer.
func closeOutput(r render.Renderer) {
	if c, ok := r.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.GetLogger().WithError(err).Warn("failed to close output")
		}
	}
}
