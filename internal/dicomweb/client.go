package dicomweb

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/studybench/internal/benchmark"
	"github.com/torosent/studybench/internal/tracing"
)

const (
	// AcceptDICOMJSON is requested from QIDO-RS.
	AcceptDICOMJSON = "application/dicom+json"
	// AcceptFrames asks WADO-RS for the frame in its stored transfer syntax.
	AcceptFrames = "multipart/related; type=application/octet-stream; transfer-syntax=*"

	maxErrorBodyBytes = 1024
)

// AuthProvider injects credentials into outgoing requests.
type AuthProvider interface {
	InjectHeader(ctx context.Context, req *http.Request) error
}

// Client issues profiled DICOMweb requests for one study.
type Client struct {
	http      *http.Client
	path      StudyPath
	auth      AuthProvider
	tracer    trace.Tracer
	propagate bool
	headers   http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithAuth injects an Authorization header into every request.
func WithAuth(p AuthProvider) Option {
	return func(c *Client) { c.auth = p }
}

// WithTracer records a client span per request. When propagate is set the
// W3C trace context is also sent to the server.
func WithTracer(t trace.Tracer, propagate bool) Option {
	return func(c *Client) {
		c.tracer = t
		c.propagate = propagate
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// NewClient returns a Client for path. A nil httpClient uses NewHTTPClient(0).
func NewClient(httpClient *http.Client, path StudyPath, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	c := &Client{
		http:    httpClient,
		path:    path,
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the study location the client targets.
func (c *Client) Path() StudyPath { return c.path }

// QueryInstances runs the QIDO-RS instance search of the study and streams
// the DICOM JSON response into w.
func (c *Client) QueryInstances(ctx context.Context, w io.Writer) (benchmark.RequestOutcome, error) {
	return c.get(ctx, "QIDO-RS", c.path.InstancesURL(), AcceptDICOMJSON, w)
}

// RetrieveFrame runs the WADO-RS frame retrieval of task and streams the
// multipart body into w.
func (c *Client) RetrieveFrame(ctx context.Context, task benchmark.FrameTask, w io.Writer) (benchmark.RequestOutcome, error) {
	target, err := c.path.FrameURL(task.SeriesID, task.InstanceID, task.Frame)
	if err != nil {
		return benchmark.RequestOutcome{}, err
	}
	return c.get(ctx, "WADO-RS", target, AcceptFrames, w)
}

func (c *Client) get(ctx context.Context, service, target, accept string, w io.Writer) (outcome benchmark.RequestOutcome, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartRequestSpan(ctx, c.tracer, service, http.MethodGet, target)
	statusCode := 0
	defer func() {
		tracing.EndSpan(span, err,
			attribute.Int("http.response.status_code", statusCode),
			attribute.Int64("http.response.body.size", outcome.BytesRead),
			attribute.String("dicomweb.cache", outcome.Cache.String()),
		)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return benchmark.RequestOutcome{}, err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", accept)
	if c.auth != nil {
		if err = c.auth.InjectHeader(ctx, req); err != nil {
			return benchmark.RequestOutcome{}, fmt.Errorf("auth provider inject header: %w", err)
		}
	}
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	var firstByte time.Time
	clientTrace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), clientTrace))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return benchmark.RequestOutcome{}, err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode
	if firstByte.IsZero() {
		// Transports that bypass httptrace (e.g. test round trippers).
		firstByte = time.Now()
	}

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		err = &StatusError{
			StatusCode: resp.StatusCode,
			URL:        target,
			Body:       strings.TrimSpace(string(snippet)),
		}
		return benchmark.RequestOutcome{}, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return benchmark.RequestOutcome{}, fmt.Errorf("read %s response: %w", service, err)
	}

	outcome = benchmark.RequestOutcome{
		StartTime:    start,
		ResponseTime: firstByte,
		EndTime:      time.Now(),
		BytesRead:    n,
		Cache:        cacheStatus(resp.Header),
	}
	return outcome, nil
}

func cacheStatus(h http.Header) benchmark.CacheStatus {
	for _, key := range []string{"X-Cache", "X-Cache-Status"} {
		if v := h.Get(key); v != "" {
			return benchmark.ParseCacheStatus(v)
		}
	}
	return benchmark.CacheUnknown
}

// NewHTTPClient returns an http.Client tuned for many concurrent requests to
// one host. A zero timeout means requests never time out.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
