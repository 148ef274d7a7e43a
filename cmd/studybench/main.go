package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/studybench/internal/benchmark"
	"github.com/torosent/studybench/internal/config"
	"github.com/torosent/studybench/internal/dicomweb"
	"github.com/torosent/studybench/internal/metrics"
	"github.com/torosent/studybench/internal/output"
	"github.com/torosent/studybench/internal/threshold"
	"github.com/torosent/studybench/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose, stderr)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	runID := ulid.Make().String()
	logger = logger.With(zap.String("run_id", runID))

	path := dicomweb.StudyPath{
		Endpoint:   cfg.Endpoint,
		Project:    cfg.Project,
		Location:   cfg.Location,
		Dataset:    cfg.Dataset,
		DICOMStore: cfg.DICOMStore,
		Study:      cfg.Study,
	}
	if err := path.Validate(); err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("tracing shutdown failed", zap.Error(shutdownErr))
		}
	}()

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	provider, err := buildAuthProvider(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	client := dicomweb.NewClient(
		dicomweb.NewHTTPClient(cfg.Timeout),
		path,
		dicomweb.WithAuth(provider),
		dicomweb.WithTracer(tp.Tracer(), tp.ShouldPropagate()),
	)
	collector := metrics.NewCollector()

	// The report stream carries JSON when requested, so human-facing lines move to stderr.
	console := stdout
	if cfg.JSONOutput {
		console = stderr
	}

	recorder := &output.Recorder{}
	reporters := []benchmark.Reporter{recorder}
	if !cfg.JSONOutput {
		reporters = append(reporters, output.NewConsoleReporter(stdout))
	}
	if cfg.Output != "" {
		sink, sinkErr := output.CreateCSVSink(cfg.Output)
		if sinkErr != nil {
			return sinkErr
		}
		defer func() {
			if closeErr := sink.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		reporters = append(reporters, sink)
	}

	opts := benchmark.Options{
		Iterations:    cfg.Iterations,
		MaxThreads:    cfg.MaxThreads,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toBenchmarkArrivalModel(cfg.Arrival.Model),
		Requester:     &recordingRequester{next: client, collector: collector},
		Progress:      output.NewProgressReporter(collector, progressInterval, console),
		Reporters:     reporters,
		Tracer:        tp.Tracer(),
		RandomSeed:    time.Now().UnixNano(),
	}
	if !cfg.QuietFailures {
		opts.FailureLogger = &zapFailureLogger{logger: logger}
	}

	logger.Info("starting benchmark",
		zap.String("study", path.StudyURL()),
		zap.Int("iterations", cfg.Iterations),
		zap.Int("max_threads", cfg.MaxThreads),
		zap.Int("rate", cfg.Rate),
	)

	bench := benchmark.New(opts)
	startedAt := time.Now()
	collector.Start()
	result, runErr := bench.Run(ctx)
	stats := collector.Stats(result.Duration)

	summaries := bench.Aggregates().Summaries()
	report := output.Report{
		RunID:      runID,
		Target:     cfg.StorePath() + "/studies/" + cfg.Study,
		StartedAt:  startedAt,
		Duration:   result.Duration,
		Config:     reportConfig(cfg),
		Iterations: recorder.Records(),
		Aggregates: summaries,
		Frames:     stats,
	}
	if runErr != nil {
		report.Error = runErr.Error()
		logger.Error("benchmark stopped", zap.Error(runErr), zap.Int("completed_iterations", result.Iterations))
	}

	thresholdsPassed := true
	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(threshold.NewSnapshot(summaries, stats))
		report.Thresholds = output.NewThresholdRecords(results)
		thresholdsPassed = threshold.AllPassed(results)
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
	}

	logger.Info("benchmark finished",
		zap.Int("iterations", result.Iterations),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed_frames", result.FailedFrames),
		zap.Duration("duration", result.Duration),
	)

	if runErr != nil {
		return runErr
	}
	if !thresholdsPassed {
		return errors.New("one or more thresholds failed")
	}
	return nil
}

func toBenchmarkArrivalModel(model config.ArrivalModel) benchmark.ArrivalModel {
	switch model {
	case config.ArrivalModelPoisson:
		return benchmark.ArrivalModelPoisson
	default:
		return benchmark.ArrivalModelUniform
	}
}

func reportConfig(cfg *config.Config) map[string]any {
	arrival := cfg.Arrival.Model
	if arrival == "" {
		arrival = config.ArrivalModelUniform
	}
	return map[string]any{
		"endpoint":      cfg.Endpoint,
		"iterations":    cfg.Iterations,
		"max_threads":   cfg.MaxThreads,
		"rate":          cfg.Rate,
		"arrival_model": string(arrival),
		"timeout":       cfg.Timeout.String(),
	}
}
