package config

import (
	"fmt"
	"os"
	"strings"

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
		Use:           "studybench",
		Short:         "Benchmark retrieval of a whole DICOM study from a DICOMweb store",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("endpoint", DefaultEndpoint, "DICOMweb API base URL")
	flags.String("project", "", "Cloud project ID")
	flags.String("location", "", "Cloud location of the dataset")
	flags.String("dataset", "", "Healthcare dataset ID")
	flags.String("dicom-store", "", "DICOM store ID")
	flags.String("study", "", "Study instance UID to retrieve")

	// Load control flags
	flags.IntP("iterations", "i", 1, "Number of times the whole study is retrieved")
	flags.IntP("max-threads", "t", 10, "Maximum number of concurrent frame requests")
	flags.IntP("rate", "r", 0, "Frame requests per second limit (0 means unlimited)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing frame requests (uniform or poisson)")
	flags.Duration("timeout", 0, "Per-request timeout (0 means none)")

	// Output flags
	flags.StringP("output", "o", "", "Write one CSV row per iteration to this file")
	flags.Bool("json-output", false, "Emit JSON formatted final report")
	flags.Bool("quiet-failures", false, "Do not log individual failed frame requests")
	flags.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Auth flags
	flags.String("token", "", "Static bearer token (default: application default credentials)")
	flags.StringSlice("scopes", nil, "OAuth2 scopes for application default credentials")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'total_latency:p95 < 5000')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of iterations to sample (0.0 to 1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("tracing-propagate", false, "Inject W3C traceparent into DICOMweb requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringTargets := []struct {
		flag string
		dst  *string
	}{
		{"endpoint", &cfg.Endpoint},
		{"project", &cfg.Project},
		{"location", &cfg.Location},
		{"dataset", &cfg.Dataset},
		{"dicom-store", &cfg.DICOMStore},
		{"study", &cfg.Study},
		{"output", &cfg.Output},
		{"token", &cfg.Auth.Token},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, target := range stringTargets {
		if !fs.Changed(target.flag) {
			continue
		}
		val, err := fs.GetString(target.flag)
		if err != nil {
			return err
		}
		*target.dst = strings.TrimSpace(val)
	}

	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.Iterations = val
	}
	if fs.Changed("max-threads") {
		val, err := fs.GetInt("max-threads")
		if err != nil {
			return err
		}
		cfg.MaxThreads = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("quiet-failures") {
		val, err := fs.GetBool("quiet-failures")
		if err != nil {
			return err
		}
		cfg.QuietFailures = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetCount("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("scopes") {
		val, err := fs.GetStringSlice("scopes")
		if err != nil {
			return err
		}
		cfg.Auth.Scopes = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	return nil
}
