// Package cmd is the daemon's cobra command surface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ArrayBolt3/kloak-v2/internal/daemon"
	"github.com/ArrayBolt3/kloak-v2/internal/logger"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

var (
	maxDelayMs int64
	seatName   string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "kloak",
	Short: "Anti-fingerprinting input daemon for Wayland compositors",
	Long: `kloak grabs keyboard and pointer devices exclusively and replays their
events through a compositor's virtual-keyboard and virtual-pointer
protocols after a randomized delay, breaking the timing fingerprint an
untrusted surface would otherwise see.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.Flags().Int64Var(&maxDelayMs, "max-delay-ms", 100, "upper bound on the randomized release delay, in milliseconds")
	rootCmd.Flags().StringVar(&seatName, "seat", "seat0", "wl_seat name (recorded only; virtual devices are created on the wl_seat the compositor advertises)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if logLevel != "" {
		logger.SetLevel(logLevel)
	}
	if maxDelayMs <= 0 {
		return fmt.Errorf("kloak: --max-delay-ms must be positive, got %d", maxDelayMs)
	}

	c, err := daemon.New(daemon.Config{
		MaxDelayMs: maxDelayMs,
		SeatName:   seatName,
	})
	if err != nil {
		return fmt.Errorf("kloak: initialize: %w", err)
	}

	if err := daemon.Bootstrap(c); err != nil {
		return fmt.Errorf("kloak: bootstrap: %w", err)
	}

	logger.Infof("kloak running, max delay %dms", maxDelayMs)
	return daemon.MainEventLoop(c)
}
