package benchmark

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/studybench/internal/manifest"
)

// Requester performs the network requests of a benchmark iteration. Payloads
// are streamed into w; implementations report timing and byte counts in the
// returned RequestOutcome and must not retry.
type Requester interface {
	QueryInstances(ctx context.Context, w io.Writer) (RequestOutcome, error)
	RetrieveFrame(ctx context.Context, task FrameTask, w io.Writer) (RequestOutcome, error)
}

// ManifestInfo describes the work found by the manifest query of an iteration.
type ManifestInfo struct {
	Iteration int
	Instances int
	Frames    int
	Threads   int
}

// Progress receives a signal per successfully retrieved frame. Increment is
// called concurrently from every worker.
type Progress interface {
	Begin(info ManifestInfo)
	Increment()
	Finish()
}

// Reporter receives the result of every iteration that scheduled frames.
type Reporter interface {
	ReportIteration(result IterationResult) error
}

// FailureLogger logs failed frame requests.
type FailureLogger interface {
	LogFailure(err error)
}

// ArrivalModel selects how frame task starts are paced when a rate is set.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure a Benchmark.
type Options struct {
	Iterations     int                                            // iterations to run; also the capacity of every metric series
	MaxThreads     int                                            // upper bound of the per-iteration worker pool
	RatePerSecond  int                                            // frame requests per second (0 means unlimited)
	ArrivalModel   ArrivalModel                                   // pacing model when RatePerSecond > 0
	Requester      Requester                                      // request executor (required)
	ParseManifest  func([]byte) ([]manifest.StudyInstance, error) // defaults to manifest.Parse
	Progress       Progress                                       // optional
	Reporters      []Reporter                                     // optional
	FailureLogger  FailureLogger                                  // optional
	Tracer         trace.Tracer                                   // optional, no-op when nil
	LimiterFactory func(rps int) *rate.Limiter                    // optional injection for tests
	PoissonSampler func() float64                                 // optional injection for tests
	RandomSeed     int64
}

func (o *Options) normalize() {
	if o.Iterations < 0 {
		o.Iterations = 0
	}
	if o.MaxThreads <= 0 {
		o.MaxThreads = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.ParseManifest == nil {
		o.ParseManifest = manifest.Parse
	}
	if o.Progress == nil {
		o.Progress = noopProgress{}
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps frame starts evenly spaced.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type noopProgress struct{}

func (noopProgress) Begin(ManifestInfo) {}
func (noopProgress) Increment()         {}
func (noopProgress) Finish()            {}
