package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/mcdetect/internal/config"
	"firestige.xyz/mcdetect/internal/core/decoder"
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/render"
	"firestige.xyz/mcdetect/internal/source/multicast"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Join a multicast group and decode detection records",
	Long: `Join a UDP multicast group and decode every datagram as a detection record.

Runs until interrupted (Ctrl-C / SIGTERM). Datagrams shorter than 56 bytes are
reported and skipped.

Examples:
  mcdetect listen                                   # 239.255.10.10:6000 on the default interface
  mcdetect listen -g 239.1.2.3 -p 7000 -i eth0      # other group, port and interface
  mcdetect listen -q                                # one line per record
  mcdetect listen -f json --hex                     # JSON lines with the raw payload`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := setup(cmd, displayBindings, listenBindings)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runListen(ctx, cfg, cmd.OutOrStdout())
	},
}

var listenBindings = map[string]string{
	"group":  "multicast.group",
	"port":   "multicast.port",
	"iface":  "multicast.iface",
	"bind":   "multicast.bind",
	"rcvbuf": "multicast.read_buffer",
}

func init() {
	fs := listenCmd.Flags()
	fs.StringP("group", "g", "239.255.10.10", "multicast group IP")
	fs.IntP("port", "p", 6000, "multicast UDP port")
	fs.StringP("iface", "i", "0.0.0.0", "local interface IP or name to join on (0.0.0.0 for default)")
	fs.String("bind", "iface", "local bind address: iface, any or group")
	fs.Int("rcvbuf", 0, "socket receive buffer in bytes (0 keeps the OS default)")
	addDisplayFlags(fs)
}

func runListen(ctx context.Context, cfg *config.Config, w io.Writer) error {
	bind, err := multicast.ParseBindMode(cfg.Multicast.Bind)
	if err != nil {
		return err
	}
	r, err := newOutput(cfg, w)
	if err != nil {
		return err
	}

	ch, err := multicast.Open(ctx, multicast.Options{
		Group:      cfg.Multicast.Group,
		Port:       cfg.Multicast.Port,
		Interface:  cfg.Multicast.Interface,
		Bind:       bind,
		ReadBuffer: cfg.Multicast.ReadBuffer,
	})
	if err != nil {
		closeOutput(r)
		return err
	}

	log.GetLogger().WithFields(log.Fields{
		"group": cfg.Multicast.Group.String(),
		"port":  cfg.Multicast.Port,
		"iface": cfg.Multicast.Interface,
		"local": ch.LocalAddr().String(),
	}).Info("listening")
	if cfg.Display.Format == render.FormatText {
		fmt.Fprintf(w, "Listening on multicast %s:%d iface=%s expecting %d bytes per packet\n",
			cfg.Multicast.Group, cfg.Multicast.Port, cfg.Multicast.Interface, decoder.RecordSize)
	}

	return runSession(ctx, cfg, "multicast", ch, r)
}
