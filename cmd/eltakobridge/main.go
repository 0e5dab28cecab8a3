// Eltako Bridge - EnOcean RS485 bus to MQTT
//
// This is the main entry point for the eltakobridge command. It connects an
// Eltako FAM14, FGW14-USB, FAM-USB or ESP3 transceiver to the Gray Logic
// MQTT topics and HTTP API, and carries the offline tools used while
// commissioning a bus:
//   - decode: decode a single hex frame
//   - sniff: print (and optionally record) live bus traffic
//   - replay: feed a recorded capture through the decoder
//   - profiles, ports: list supported EEPs and serial ports
//   - migrate: inspect or step the local database schema
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootCommand builds the command tree. Without a subcommand the bridge runs.
func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "eltakobridge",
		Short:         "Eltako RS485 / EnOcean bridge for Gray Logic",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default $ELTAKO_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	})
	root.AddCommand(decodeCommand())
	root.AddCommand(sniffCommand())
	root.AddCommand(replayCommand(&configPath))
	root.AddCommand(profilesCommand())
	root.AddCommand(portsCommand())
	root.AddCommand(migrateCommand(&configPath))

	return root
}

// resolveConfigPath returns the --config flag, then ELTAKO_CONFIG, then the
// default path.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("ELTAKO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
