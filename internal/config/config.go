package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultEndpoint is the Cloud Healthcare API base URL.
const DefaultEndpoint = "https://healthcare.googleapis.com/v1"

// DefaultScope is requested when no scopes are configured and no static token is given.
const DefaultScope = "https://www.googleapis.com/auth/cloud-healthcare"

type Config struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Project       string        `mapstructure:"project"`
	Location      string        `mapstructure:"location"`
	Dataset       string        `mapstructure:"dataset"`
	DICOMStore    string        `mapstructure:"dicom_store"`
	Study         string        `mapstructure:"study"`
	Iterations    int           `mapstructure:"iterations"`
	MaxThreads    int           `mapstructure:"max_threads"`
	Rate          int           `mapstructure:"rate"`
	Arrival       ArrivalConfig `mapstructure:"arrival"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Output        string        `mapstructure:"output"`
	JSONOutput    bool          `mapstructure:"json_output"`
	QuietFailures bool          `mapstructure:"quiet_failures"`
	Verbose       int           `mapstructure:"verbose"`
	Auth          AuthConfig    `mapstructure:"auth"`
	Thresholds    []string      `mapstructure:"thresholds"`
	Tracing       TracingConfig `mapstructure:"tracing"`
	ConfigFile    string        `mapstructure:"-"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// AuthConfig selects how bearer tokens are obtained. A static token wins;
// otherwise Google application default credentials are used with Scopes.
type AuthConfig struct {
	Token  string   `mapstructure:"token"`
	Scopes []string `mapstructure:"scopes"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either
// explicitly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether traceparent headers are injected into
// outgoing requests. Defaults to Enabled when not set explicitly.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// StorePath returns the DICOM store resource path relative to the endpoint.
func (c Config) StorePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/datasets/%s/dicomStores/%s",
		c.Project, c.Location, c.Dataset, c.DICOMStore)
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

	if strings.TrimSpace(c.Endpoint) == "" {
		issues = append(issues, "endpoint is required")
	} else if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("endpoint %q is not an absolute URL", c.Endpoint))
	}

	required := []struct {
		name  string
		value string
	}{
		{"project", c.Project},
		{"location", c.Location},
		{"dataset", c.Dataset},
		{"dicom-store", c.DICOMStore},
		{"study", c.Study},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			issues = append(issues, fmt.Sprintf("%s is required (use --help for usage information)", r.name))
		}
	}

	if c.MaxThreads > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High thread count configured (%d). Ensure you have authorization to load the target DICOM store.\n", c.MaxThreads)
	}

	if c.Iterations < 1 {
		issues = append(issues, "iterations must be >= 1")
	}
	if c.MaxThreads < 1 {
		issues = append(issues, "max-threads must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Verbose < 0 {
		issues = append(issues, "verbose must be >= 0")
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateTracingConfig(tr TracingConfig) []string {
	var issues []string
	switch strings.ToLower(tr.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be \"grpc\" or \"http\", got %q", tr.Protocol))
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", tr.SampleRate))
	}
	return issues
}
