package cmd

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/core/decoder"
	"firestige.xyz/mcdetect/internal/render"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a single payload given as hex",
	Long: `Decode one detection record from its hex encoding, as printed by --hex.
Spaces and colons between bytes are ignored.

Examples:
  mcdetect decode 0000204100...                     # text rendering
  mcdetect decode "00 00 20 41 ..." -f json         # JSON rendering`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := setup(cmd, displayBindings)
		if err != nil {
			return err
		}
		defer cleanup()

		payload, err := parseHex(args[0])
		if err != nil {
			return err
		}
		r, err := render.New(cfg.Display.Format, render.Options{Hex: cfg.Display.Hex, Quiet: cfg.Display.Quiet}, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOutput(r)
		return runDecode(r, payload, time.Now())
	},
}

func init() {
	addDisplayFlags(decodeCmd.Flags())
}

func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}

// runDecode decodes payload and hands the result to r. A decode failure is
// rendered and also returned.
func runDecode(r render.Renderer, payload []byte, now time.Time) error {
	d := core.Datagram{
		Payload:    payload,
		Source:     netip.AddrPortFrom(netip.IPv4Unspecified(), 0),
		ReceivedAt: now,
	}
	rec, err := decoder.Decode(payload)
	if err != nil {
		if rerr := r.DecodeError(d, err); rerr != nil {
			return rerr
		}
		return err
	}
	return r.Record(d, rec)
}
