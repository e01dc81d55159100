package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

var (
	// Global flags
	verbose     bool
	debug       bool
	metricsFile string
	traceOn     bool
	traceTarget string
)

// ExitError carries a specific process exit code out of a command. Exit code 2
// reports unresolved build variables, distinct from a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smith",
		Short: "buildsmith - build-configuration orchestrator",
		Long: `buildsmith resolves multi-context build configurations: it derives the
context matrix from a solution file, resolves packs, components, hardware and
toolchains per context, and emits the build-configuration artifact family.

Contexts are named <project>.<build-type>+<target-type>.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "report per-component configuration files")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write run metrics to this file in Prometheus text format")
	rootCmd.PersistentFlags().BoolVar(&traceOn, "trace", false, "enable trace export")
	rootCmd.PersistentFlags().StringVar(&traceTarget, "trace-endpoint", "", "OTLP collector endpoint (host:port); stdout when empty")

	rootCmd.AddCommand(newConfigureCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newListCommand())

	return rootCmd
}

// newTelemetry builds the run's telemetry from the global flags.
func newTelemetry(version string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	if debug {
		cfg.Logging.Level = "debug"
	}
	if metricsFile != "" {
		cfg.Metrics.TextfilePath = metricsFile
	}
	if traceOn {
		cfg.Tracing.Enabled = true
		endpoint := traceTarget
		if endpoint == "" {
			endpoint = os.Getenv("SMITH_OTLP_ENDPOINT")
		}
		if endpoint != "" {
			cfg.Tracing.Exporter = "otlp"
			cfg.Tracing.Endpoint = endpoint
		}
	}
	return telemetry.New(cfg)
}
