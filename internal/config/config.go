package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
)

// DefaultPaths are the candidate paths probed when none are configured.
var DefaultPaths = []string{
	"/",
	"/robots.txt",
	"/sitemap.xml",
	"/news/",
	"/about/",
	"/contact/",
}

// DefaultUserAgents are common crawler user agents rotated across requests.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"Mozilla/5.0 (compatible; Googlebot-Image/1.0; +http://www.google.com/bot.html)",
	"Googlebot-News",
	"Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36",
}

type Config struct {
	TargetURL        string        `mapstructure:"target"`
	MaxRequests      int           `mapstructure:"max_requests"`
	ConcurrentUsers  int           `mapstructure:"concurrent_users"`
	RequestDelay     time.Duration `mapstructure:"request_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Paths            []string      `mapstructure:"paths"`
	UserAgents       []string      `mapstructure:"user_agents"`
	Seed             int64         `mapstructure:"seed"`
	ReportFormat     ReportFormat  `mapstructure:"report_format"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	Log              LogConfig     `mapstructure:"log"`
	Tracing          TracingConfig `mapstructure:"tracing"`
	ConfigFile       string        `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector endpoint (host:port)
	Protocol    string  `mapstructure:"protocol"`     // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"` // defaults to crawlprobe
	SampleRate  float64 `mapstructure:"sample_rate"`  // 0.0 - 1.0
	Insecure    bool    `mapstructure:"insecure"`     // plaintext exporter connection
}

// Enabled reports whether an exporter endpoint has been configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		MaxRequests:     100,
		ConcurrentUsers: 5,
		RequestDelay:    time.Second,
		Timeout:         10 * time.Second,
		Paths:           append([]string(nil), DefaultPaths...),
		UserAgents:      append([]string(nil), DefaultUserAgents...),
		ReportFormat:    ReportFormatText,
		Log:             LogConfig{Level: "info", Format: "text"},
		Tracing:         TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateTarget(c.TargetURL)...)

	if c.MaxRequests < 1 {
		issues = append(issues, "max-requests must be >= 1")
	}
	if c.ConcurrentUsers < 1 {
		issues = append(issues, "concurrent-users must be >= 1")
	}
	if c.RequestDelay < 0 {
		issues = append(issues, "request-delay must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.ProgressInterval < 0 {
		issues = append(issues, "progress-interval must be >= 0")
	}

	if len(c.Paths) == 0 {
		issues = append(issues, "at least one path is required")
	}
	for idx, p := range c.Paths {
		if strings.TrimSpace(p) == "" {
			issues = append(issues, fmt.Sprintf("paths[%d]: must not be empty", idx))
		}
	}
	if len(c.UserAgents) == 0 {
		issues = append(issues, "at least one user agent is required")
	}
	for idx, ua := range c.UserAgents {
		if strings.TrimSpace(ua) == "" {
			issues = append(issues, fmt.Sprintf("user_agents[%d]: must not be empty", idx))
		}
		if strings.ContainsAny(ua, "\r\n") {
			issues = append(issues, fmt.Sprintf("user_agents[%d]: must not contain line breaks", idx))
		}
	}

	switch c.ReportFormat {
	case ReportFormatText, ReportFormatJSON, ReportFormatYAML:
	default:
		issues = append(issues, fmt.Sprintf("report format %q is not supported", c.ReportFormat))
	}

	issues = append(issues, validateLogConfig(c.Log)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings returns non-fatal advisories about the configuration.
func (c Config) Warnings() []string {
	var warnings []string
	if c.ConcurrentUsers > 500 {
		warnings = append(warnings, fmt.Sprintf("High concurrency configured (%d users). Ensure you have authorization to test the target system.", c.ConcurrentUsers))
	}
	if c.ConcurrentUsers > c.MaxRequests && c.MaxRequests > 0 {
		warnings = append(warnings, fmt.Sprintf("concurrent-users (%d) exceeds max-requests (%d); only %d users will ever be active", c.ConcurrentUsers, c.MaxRequests, c.MaxRequests))
	}
	if c.RequestDelay == 0 {
		warnings = append(warnings, "request-delay is 0; requests are paced only by batch completion")
	}
	if c.Tracing.Enabled() && c.Tracing.Insecure {
		warnings = append(warnings, "OTLP exporter TLS is DISABLED (insecure: true).")
	}
	return warnings
}

func validateTarget(target string) []string {
	target = strings.TrimSpace(target)
	if target == "" {
		return []string{"target URL is required (use --help for usage information)"}
	}
	u, err := url.Parse(target)
	if err != nil {
		return []string{fmt.Sprintf("target URL is invalid: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("target URL scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return []string{"target URL must include a host"}
	}
	return nil
}

func validateLogConfig(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", l.Level))
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format must be 'text' or 'json', got %q", l.Format))
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
