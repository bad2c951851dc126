package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crawlprobe <url>",
		Short:         "Safety-conscious HTTP load generator with crawler user agents",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Load control flags
	flags.Int("max-requests", 100, "Maximum number of requests to make")
	flags.Int("concurrent-users", 5, "Number of concurrent users to simulate")
	flags.Float64("request-delay", 1.0, "Delay after each request in seconds")
	flags.Float64("timeout", 10, "Per-request timeout in seconds")

	// Request shaping flags
	flags.StringSlice("path", nil, "Candidate path to request (repeatable, replaces the defaults)")
	flags.StringArray("user-agent", nil, "User agent to rotate (repeatable, replaces the defaults)")
	flags.Int64("seed", 0, "Random seed for path and user agent selection (0 means time based)")

	// Output flags
	flags.String("report-format", string(ReportFormatText), "Summary format: 'text', 'json', or 'yaml'")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: 'text' or 'json'")
	flags.Float64("progress-interval", 0, "Log a live progress snapshot every N seconds (0 disables)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing flags
	flags.String("otel-endpoint", "", "OTLP endpoint for request spans (host:port)")
	flags.String("otel-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("otel-service-name", "", "Service name reported on spans")
	flags.Float64("otel-sample-rate", 1.0, "Fraction of requests traced (0.0 - 1.0)")
	flags.Bool("otel-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// secondsToDuration converts fractional seconds as accepted on the CLI.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("max-requests") {
		val, err := fs.GetInt("max-requests")
		if err != nil {
			return err
		}
		cfg.MaxRequests = val
	}
	if fs.Changed("concurrent-users") {
		val, err := fs.GetInt("concurrent-users")
		if err != nil {
			return err
		}
		cfg.ConcurrentUsers = val
	}
	if fs.Changed("request-delay") {
		val, err := fs.GetFloat64("request-delay")
		if err != nil {
			return err
		}
		cfg.RequestDelay = secondsToDuration(val)
	}
	if fs.Changed("timeout") {
		val, err := fs.GetFloat64("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = secondsToDuration(val)
	}
	if fs.Changed("path") {
		val, err := fs.GetStringSlice("path")
		if err != nil {
			return err
		}
		cfg.Paths = trimAll(val)
	}
	if fs.Changed("user-agent") {
		val, err := fs.GetStringArray("user-agent")
		if err != nil {
			return err
		}
		cfg.UserAgents = trimAll(val)
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("report-format") {
		val, err := fs.GetString("report-format")
		if err != nil {
			return err
		}
		cfg.ReportFormat = ReportFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("progress-interval") {
		val, err := fs.GetFloat64("progress-interval")
		if err != nil {
			return err
		}
		cfg.ProgressInterval = secondsToDuration(val)
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if fs.Changed("otel-endpoint") {
		val, err := fs.GetString("otel-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otel-protocol") {
		val, err := fs.GetString("otel-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("otel-service-name") {
		val, err := fs.GetString("otel-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("otel-sample-rate") {
		val, err := fs.GetFloat64("otel-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("otel-insecure") {
		val, err := fs.GetBool("otel-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
