package cmd

import (
	"context"

	"github.com/google/uuid"

	"firestige.xyz/mcdetect/internal/config"
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/metrics"
	"firestige.xyz/mcdetect/internal/receiver"
	"firestige.xyz/mcdetect/internal/render"
	"firestige.xyz/mcdetect/internal/source"
)

// runSession drives src through the receive loop until ctx ends or src is
// drained, with the metrics endpoint up for the duration when enabled.
func runSession(ctx context.Context, cfg *config.Config, name string, src source.Source, r render.Renderer) error {
	logger := log.GetLogger().WithField("session", uuid.NewString())

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			src.Close()
			closeOutput(r)
			return err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to stop metrics server")
			}
		}()
	}

	rc := receiver.New(src, r,
		receiver.WithName(name),
		receiver.WithLogger(logger),
		receiver.WithWarnLimit(cfg.Log.DecodeWarnLimit, cfg.Log.DecodeWarnWindow),
	)
	err := rc.Run(ctx)

	closeOutput(r)

	st := rc.Stats()
	logger.WithFields(log.Fields{
		"received":      st.Received,
		"decoded":       st.Decoded,
		"too_short":     st.TooShort,
		"render_errors": st.RenderErrors,
	}).Info("session finished")
	return err
}
