// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/mcdetect/internal/config"
	"firestige.xyz/mcdetect/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string

	// vp layers flags over env over the config file over defaults.
	vp = config.NewViper()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcdetect",
	Short: "mcdetect - multicast detection record receiver",
	Long: `mcdetect joins a UDP multicast group and decodes the fixed 56-byte
detection/classification records published by a video-analytics pipeline.

Each datagram is decoded as a packed little-endian record (bounding box, class ids,
tracker id, confidences, source id and a timestamp of unknown unit) and rendered
for an operator as text, JSON or YAML. Captures can be replayed offline from pcap.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (YAML, optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (trace/debug/info/warn/error)")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(decodeCmd)
}

// displayBindings maps the shared display flags to their config keys.
var displayBindings = map[string]string{
	"hex":    "display.hex",
	"quiet":  "display.quiet",
	"format": "display.format",
}

func addDisplayFlags(fs *pflag.FlagSet) {
	fs.Bool("hex", false, "dump raw payload in hex")
	fs.BoolP("quiet", "q", false, "minimal output (one line per packet)")
	fs.StringP("format", "f", "text", "output format (text/json/yaml)")
}

// bindFlags points each config key at the named flag. Unchanged flags fall
// back to env, file and defaults.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings ...map[string]string) error {
	for _, b := range bindings {
		for name, key := range b {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(config.Key(key), f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}
	return nil
}

// setup loads the configuration for cmd and initialises logging. The
// returned cleanup flushes and closes the log file.
func setup(cmd *cobra.Command, bindings ...map[string]string) (*config.Config, func(), error) {
	bindings = append(bindings, map[string]string{"log-level": "log.level"})
	if err := bindFlags(vp, cmd.Flags(), bindings...); err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadFrom(vp, configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	cleanup := func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to close log file: %v\n", err)
		}
	}
	return cfg, cleanup, nil
}
