package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
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

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Endpoint:   DefaultEndpoint,
		Iterations: 1,
		MaxThreads: 10,
		ConfigFile: configPath,
		Arrival:    ArrivalConfig{Model: ArrivalModelUniform},
		Tracing:    TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	// Fallback to environment variable if no token was configured
	if cfg.Auth.Token == "" {
		if envToken := os.Getenv("STUDYBENCH_TOKEN"); envToken != "" {
			cfg.Auth.Token = envToken
		}
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringTargets := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &cfg.Endpoint},
		{[]string{"project"}, &cfg.Project},
		{[]string{"location"}, &cfg.Location},
		{[]string{"dataset"}, &cfg.Dataset},
		{[]string{"dicomstore", "dicom_store", "dicom-store"}, &cfg.DICOMStore},
		{[]string{"study"}, &cfg.Study},
		{[]string{"output"}, &cfg.Output},
	}
	for _, target := range stringTargets {
		raw, ok := lookupSetting(settings, target.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", target.keys[len(target.keys)-1], err)
		}
		*target.dst = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "iterations"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
		cfg.Iterations = val
	}

	if raw, ok := lookupSetting(settings, "maxthreads", "max_threads", "max-threads"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_threads: %w", err)
		}
		cfg.MaxThreads = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		cfg.Arrival = arrival
	}

	if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("arrival_model: %w", err)
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "quietfailures", "quiet_failures", "quiet-failures"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("quiet_failures: %w", err)
		}
		cfg.QuietFailures = val
	}

	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("verbose: %w", err)
		}
		cfg.Verbose = val
	}

	if raw, ok := lookupSetting(settings, "auth"); ok {
		auth, err := parseAuth(raw)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		cfg.Auth = auth
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{Model: ArrivalModelUniform}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return ArrivalConfig{}, err
	}
	arrival := ArrivalConfig{Model: ArrivalModelUniform}
	if raw, ok := lookupSetting(entry, "model"); ok {
		val, err := asString(raw)
		if err != nil {
			return ArrivalConfig{}, fmt.Errorf("model: %w", err)
		}
		if val = strings.ToLower(strings.TrimSpace(val)); val != "" {
			arrival.Model = ArrivalModel(val)
		}
	}
	return arrival, nil
}

func parseAuth(value interface{}) (AuthConfig, error) {
	if value == nil {
		return AuthConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return AuthConfig{}, err
	}
	var auth AuthConfig
	if raw, ok := lookupSetting(entry, "token", "statictoken", "static_token", "static-token"); ok {
		val, err := asString(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("token: %w", err)
		}
		auth.Token = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "scopes"); ok {
		scopes, err := asStringSlice(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("scopes: %w", err)
		}
		auth.Scopes = scopes
	}
	return auth, nil
}

func parseTracing(value interface{}, defaults TracingConfig) (TracingConfig, error) {
	if value == nil {
		return defaults, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tracing := defaults
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = &val
	}
	return tracing, nil
}
