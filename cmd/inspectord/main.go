// Command inspectord is the daemon entrypoint: a single cobra "start"
// command that loads config, resolves the network topology, and runs the
// engine until interrupted (spec §6). Mirrors the teacher's cmd/main.go +
// cmd/run.go split into "parse flags" / "build Cfg" / "run".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iotinspector/inspector/internal/config"
	"github.com/iotinspector/inspector/internal/engine"
	"github.com/iotinspector/inspector/internal/misc"
)

const startExample = "inspectord start -v debug"

var (
	configFile string
	ouiFile    string
	logLevel   string
	logFile    string

	rootCmd = &cobra.Command{
		Use:   "inspectord",
		Short: "Local-network device-inspection engine",
	}

	startCmd = &cobra.Command{
		Use:     "start",
		Short:   "Resolve the network and start inspecting",
		Example: startExample,
		RunE:    runStart,
	}
)

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", config.DefaultFileName,
		"Path to the JSON config file")
	startCmd.Flags().StringVarP(&ouiFile, "oui-file", "o", "",
		"Path to a tab-separated OUI vendor-prefix database")
	startCmd.Flags().StringVarP(&logLevel, "log-level", "v", "info",
		"Logging level: debug, info, warn, error, panic, fatal")
	startCmd.Flags().StringVarP(&logFile, "log-file", "l", "",
		"Where to send logs (defaults to stdout/stderr)")

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if !runningAsRoot() {
		return fmt.Errorf("inspectord must be run as root to enable IP forwarding and raw packet capture")
	}

	var outputs []string
	if logFile != "" {
		outputs = []string{logFile}
	}
	log, err := misc.NewLogger(logLevel, outputs, outputs)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	cfg := config.Load(configFile, log)

	var opts []engine.Option
	if ouiFile != "" {
		opts = append(opts, engine.WithOUIDatabase(ouiFile))
	}
	e, err := engine.New(cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}
	defer e.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting inspector engine")
	if err := e.Run(ctx); err != nil {
		return fmt.Errorf("running engine: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
