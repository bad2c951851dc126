package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader consults,
// e.g. CRAWLPROBE_MAX_REQUESTS or CRAWLPROBE_TRACING_ENDPOINT.
const EnvPrefix = "CRAWLPROBE"

// envKeys lists the settings that may be supplied through the environment.
var envKeys = []string{
	"target",
	"max_requests",
	"concurrent_users",
	"request_delay",
	"timeout",
	"paths",
	"user_agents",
	"seed",
	"report_format",
	"metrics_addr",
	"progress_interval",
	"log.level",
	"log.format",
	"tracing.endpoint",
	"tracing.protocol",
	"tracing.service_name",
	"tracing.sample_rate",
	"tracing.insecure",
}

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct {
	// LookupEnv overrides os.LookupEnv for tests. Nil means the process environment.
	LookupEnv func(string) (string, bool)
}

// ErrHelpRequested is returned only for an explicit --help. A missing target
// is reported by Validate like any other configuration error.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, the environment and configuration files
// to produce a Config. Precedence is defaults < file < environment < flags.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()

	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("expected a single target URL, got %d arguments: %s", len(positional), strings.Join(positional, " "))
	}

	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(EnvPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := l.bindEnv(cfgViper, key); err != nil {
			return nil, err
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	settings := cfgViper.AllSettings()

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if len(positional) == 1 {
		cfg.TargetURL = positional[0]
	}
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)

	return cfg, nil
}

func (l Loader) bindEnv(v *viper.Viper, key string) error {
	if l.LookupEnv == nil {
		return v.BindEnv(key)
	}
	name := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
	if val, ok := l.LookupEnv(name); ok {
		v.Set(key, val)
	}
	return nil
}

// applyConfigSettings applies settings from a config file or the environment
// to the Config struct. Every malformed setting is reported, not just the first.
func applyConfigSettings(cfg *Config, raw map[string]interface{}) error {
	s := newSettings(raw)
	if len(s) == 0 {
		return nil
	}

	reportFormat := string(cfg.ReportFormat)
	errs := []error{
		s.text(&cfg.TargetURL, "target", "url"),
		s.count(&cfg.MaxRequests, "max_requests"),
		s.count(&cfg.ConcurrentUsers, "concurrent_users"),
		s.seconds(&cfg.RequestDelay, "request_delay"),
		s.seconds(&cfg.Timeout, "timeout"),
		s.seconds(&cfg.ProgressInterval, "progress_interval"),
		s.list(&cfg.Paths, ",", "paths"),
		// User agents contain commas, so a flat value lists one per line.
		s.list(&cfg.UserAgents, "\n", "user_agents"),
		s.seed(&cfg.Seed, "seed"),
		s.keyword(&reportFormat, "report_format"),
		s.text(&cfg.MetricsAddr, "metrics_addr"),
		applyLogSettings(&cfg.Log, s),
		applyTracingSettings(&cfg.Tracing, s),
	}
	if reportFormat != "" {
		cfg.ReportFormat = ReportFormat(reportFormat)
	}
	return errors.Join(errs...)
}

func applyLogSettings(l *LogConfig, s settings) error {
	block, ok, err := s.section("log")
	if err != nil || !ok {
		return err
	}
	if err := errors.Join(
		block.keyword(&l.Level, "level"),
		block.keyword(&l.Format, "format"),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, s settings) error {
	block, ok, err := s.section("tracing")
	if err != nil || !ok {
		return err
	}
	if err := errors.Join(
		block.text(&t.Endpoint, "endpoint"),
		block.keyword(&t.Protocol, "protocol"),
		block.text(&t.ServiceName, "service_name"),
		block.ratio(&t.SampleRate, "sample_rate"),
		block.toggle(&t.Insecure, "insecure"),
	); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}
