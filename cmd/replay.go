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
	"firestige.xyz/mcdetect/internal/log"
	"firestige.xyz/mcdetect/internal/source/pcapfile"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file.pcap>",
	Short: "Decode detection records from a packet capture",
	Long: `Replay a pcap or pcapng capture and decode the UDP datagrams sent to the
multicast group and port. Receive times are the capture timestamps.

Examples:
  mcdetect replay capture.pcap                      # records sent to 239.255.10.10:6000
  mcdetect replay capture.pcap -p 7000 -f yaml      # another port, as YAML
  mcdetect replay capture.pcap -g "" -p 0           # every UDP datagram in the file`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := setup(cmd, displayBindings, replayBindings)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runReplay(ctx, cfg, args[0], cmd.OutOrStdout())
	},
}

var replayBindings = map[string]string{
	"group": "multicast.group",
	"port":  "multicast.port",
}

func init() {
	fs := replayCmd.Flags()
	fs.StringP("group", "g", "239.255.10.10", "only replay datagrams sent to this group (empty for any)")
	fs.IntP("port", "p", 6000, "only replay datagrams sent to this port (0 for any)")
	addDisplayFlags(fs)
}

func runReplay(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	r, err := newOutput(cfg, w)
	if err != nil {
		return err
	}

	src, err := pcapfile.Open(path, pcapfile.Filter{
		Group: cfg.Multicast.Group,
		Port:  uint16(cfg.Multicast.Port),
	})
	if err != nil {
		closeOutput(r)
		return err
	}

	if err := runSession(ctx, cfg, "pcap", src, r); err != nil {
		return fmt.Errorf("replay %s: %w", path, err)
	}
	log.GetLogger().WithFields(log.Fields{
		"file":      path,
		"skipped":   src.Skipped(),
		"truncated": src.Truncated(),
	}).Debug("replay finished")
	return nil
}
