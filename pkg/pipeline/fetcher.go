package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/terra-graph/newsgraph/internal/util"
	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/logger"
	"github.com/terra-graph/newsgraph/pkg/state"
)

// Archiver stores raw fetch snapshots long-term. Implemented by the S3
// client; optional.
type Archiver interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(req *http.Request) {
		q := req.URL.Query()
		q.Set(key, value)
		req.URL.RawQuery = q.Encode()
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Fetcher performs rate-limited HTTP fetches with retry and snapshots every
// successful response body to the state store for replay.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	state      state.Store
	namespace  string
	archive    Archiver
	maxTries   int
	retryDelay time.Duration
}

// FetcherParams configures a Fetcher. Archive may be nil. Zero retry values
// fall back to 10 tries with a 1 second initial delay.
type FetcherParams struct {
	Client     *http.Client
	Limiter    *rate.Limiter
	State      state.Store
	Namespace  string
	Archive    Archiver
	MaxTries   int
	RetryDelay time.Duration
}

// NewFetcher creates a Fetcher.
func NewFetcher(params FetcherParams) *Fetcher {
	if params.Client == nil {
		params.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if params.Limiter == nil {
		params.Limiter = rate.NewLimiter(rate.Limit(2), 1)
	}
	if params.MaxTries <= 0 {
		params.MaxTries = 10
	}
	if params.RetryDelay <= 0 {
		params.RetryDelay = time.Second
	}
	return &Fetcher{
		client:     params.Client,
		limiter:    params.Limiter,
		state:      params.State,
		namespace:  params.Namespace,
		archive:    params.Archive,
		maxTries:   params.MaxTries,
		retryDelay: params.RetryDelay,
	}
}

// Fetch performs the request and returns the response body and headers.
// Network errors and non-2xx responses are retried with doubling backoff
// before surfacing ErrFetch. Each attempt waits on the shared rate limiter.
func (f *Fetcher) Fetch(ctx context.Context, url string, method string, opts ...RequestOption) ([]byte, http.Header, error) {
	body, header, err := util.RetryBackoff2WithContext(ctx, f.maxTries, f.retryDelay,
		func(ctx context.Context) ([]byte, http.Header, error) {
			return f.fetchOnce(ctx, url, method, opts...)
		})
	if err != nil {
		return nil, nil, err
	}

	f.snapshot(ctx, body)
	return body, header, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, method string, opts ...RequestOption) ([]byte, http.Header, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request for %s: %v", common.ErrFetch, url, err)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %v", common.ErrFetch, method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body from %s: %v", common.ErrFetch, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: %s returned status %d", common.ErrFetch, url, resp.StatusCode)
	}

	return body, resp.Header, nil
}

// snapshot writes the raw body under a timestamped key so a run can be
// replayed without re-fetching. Snapshot failures are logged, not fatal.
func (f *Fetcher) snapshot(ctx context.Context, body []byte) {
	key := fmt.Sprintf("extract:%s", time.Now().UTC().Format(time.RFC3339Nano))
	if f.state != nil {
		if err := f.state.Save(ctx, f.namespace, key, string(body), state.SnapshotTTL); err != nil {
			logger.Warn("[Fetcher] snapshot to state store failed", "key", key, "error", err)
		}
	}
	if f.archive != nil {
		if err := f.archive.PutSnapshot(ctx, f.namespace+"/"+key, body); err != nil {
			logger.Warn("[Fetcher] snapshot archive failed", "key", key, "error", err)
		}
	}
}
