// Package openfda is a typed client for the openFDA drug datasets: adverse
// events (FAERS), product labeling (SPL), and enforcement/recall reports.
//
// Each query issues exactly one logical outbound GET. [Client] bounds the
// request with a timeout, retries transient failures within a configurable
// attempt budget, and guards the upstream host with a circuit breaker.
// Responses are decoded against an explicit per-endpoint schema and
// projected into compact summary records; all failures are [*Error] values
// carrying a [Kind].
//
// Typical usage:
//
//	client := openfda.New(openfda.WithAPIKey(key))
//	res, err := client.SearchEvents(ctx, openfda.EventQuery{
//	    DrugName: "aspirin",
//	    Limit:    10,
//	})
package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/fdalens/internal/observe"
	"github.com/MrWong99/fdalens/internal/resilience"
)

// DefaultBaseURL is the public openFDA API host.
const DefaultBaseURL = "https://api.fda.gov"

// defaultTimeout bounds a single outbound request when no timeout is
// configured.
const defaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read. openFDA
// responses at the maximum limit stay well below this.
const maxBodyBytes = 16 << 20

// endpoint pairs a short metric/log name with a dataset path.
type endpoint struct {
	name string
	path string
}

var (
	endpointEvents  = endpoint{name: "events", path: "/drug/event.json"}
	endpointLabels  = endpoint{name: "labels", path: "/drug/label.json"}
	endpointRecalls = endpoint{name: "recalls", path: "/drug/enforcement.json"}
)

// popularDrugs backs the fda://drug-labels/popular resource. Only the
// first popularFetchCount entries are fetched per read to keep the
// resource cheap against the upstream quota.
var popularDrugs = []string{"aspirin", "ibuprofen", "acetaminophen", "metformin", "lisinopril"}

const popularFetchCount = 3

// emptyEnvelope is substituted when the upstream reports NOT_FOUND: a
// query that matched nothing is a valid empty result, not an error.
var emptyEnvelope = []byte(`{"meta":{"results":{"skip":0,"limit":0,"total":0}},"results":[]}`)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithBaseURL overrides the openFDA host, e.g. to point at a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithAPIKey sets the openFDA API key forwarded with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout bounds each outbound request. Non-positive values keep the
// default of 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying [http.Client].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxAttempts sets the total attempt budget per call, including the
// first attempt. Only rate-limit and network failures are retried.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retry.MaxAttempts = n
		}
	}
}

// WithMetrics wires an observe.Metrics instance for per-request
// instrumentation. Without it the client records nothing.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client issues queries against the openFDA API. Create instances with
// [New]; the zero value is not usable. Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
	metrics    *observe.Metrics
}

// New creates a ready-to-use Client for the public openFDA API. Use
// options to override the host, timeout, attempt budget, or API key.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		timeout:    defaultTimeout,
		retry:      resilience.RetryPolicy{MaxAttempts: 3},
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: c.baseURL})
	return c
}

// ─── Tool queries ────────────────────────────────────────────────────────────

// SearchEvents queries FAERS adverse event reports.
func (c *Client) SearchEvents(ctx context.Context, q EventQuery) (*EventsResult, error) {
	env, err := c.query(ctx, endpointEvents, q)
	if err != nil {
		return nil, err
	}
	return normalizeEvents(env, q.EffectiveLimit())
}

// SearchLabels queries SPL product labeling records.
func (c *Client) SearchLabels(ctx context.Context, q LabelQuery) (*LabelsResult, error) {
	env, err := c.query(ctx, endpointLabels, q)
	if err != nil {
		return nil, err
	}
	return normalizeLabels(env, q.EffectiveLimit())
}

// SearchRecalls queries drug enforcement (recall) reports.
func (c *Client) SearchRecalls(ctx context.Context, q RecallQuery) (*RecallsResult, error) {
	env, err := c.query(ctx, endpointRecalls, q)
	if err != nil {
		return nil, err
	}
	return normalizeRecalls(env, q.EffectiveLimit())
}

// valueser is implemented by all three query types.
type valueser interface {
	Values() (url.Values, error)
}

// query renders q, issues the GET, and decodes the common envelope.
func (c *Client) query(ctx context.Context, ep endpoint, q valueser) (*envelope, error) {
	params, err := q.Values()
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, ep, params)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(ep.name, body)
	if err != nil {
		c.recordError(ctx, ep, err)
		return nil, err
	}
	if env.Error != nil {
		ferr := callErr(KindUpstream, ep.name, env.Error.Code+": "+env.Error.Message, nil)
		c.recordError(ctx, ep, ferr)
		return nil, ferr
	}
	return env, nil
}

// ─── Resource queries ────────────────────────────────────────────────────────

// RecentEvents returns the raw openFDA response for adverse events
// received in the last 30 days (limit 20). Backs fda://drug-events/recent.
func (c *Client) RecentEvents(ctx context.Context) (json.RawMessage, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -30)
	interval := fmt.Sprintf("[%s TO %s]", start.Format("20060102"), end.Format("20060102"))

	params := url.Values{
		"search": {"receivedate:" + interval},
		"limit":  {"20"},
	}
	return c.getRaw(ctx, endpointEvents, params)
}

// RecentRecalls returns the raw openFDA response for the most recent drug
// recalls (limit 20, newest first). Backs fda://recalls/recent.
func (c *Client) RecentRecalls(ctx context.Context) (json.RawMessage, error) {
	params := url.Values{
		"search": {"product_type:Drugs"},
		"limit":  {"20"},
		"sort":   {"recall_initiation_date:desc"},
	}
	return c.getRaw(ctx, endpointRecalls, params)
}

// PopularLabels fetches one labeling record for each of the first
// popularFetchCount popular drugs and merges them under a single
// "results" key. Per-drug failures are tolerated: a drug that cannot be
// fetched is logged and skipped. Backs fda://drug-labels/popular.
func (c *Client) PopularLabels(ctx context.Context) (json.RawMessage, error) {
	drugs := popularDrugs[:popularFetchCount]

	var mu sync.Mutex
	collected := make([][]json.RawMessage, len(drugs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2) // keep concurrent pressure on the upstream quota low
	for i, drug := range drugs {
		g.Go(func() error {
			q := LabelQuery{DrugName: drug, Limit: 1}
			params, err := q.Values()
			if err != nil {
				return err
			}
			body, err := c.getRaw(gctx, endpointLabels, params)
			if err != nil {
				observe.Logger(gctx).Warn("skipping popular drug label", "drug", drug, "err", err)
				return nil
			}
			var env struct {
				Results []json.RawMessage `json:"results"`
			}
			if err := json.Unmarshal(body, &env); err != nil {
				observe.Logger(gctx).Warn("skipping popular drug label", "drug", drug, "err", err)
				return nil
			}
			mu.Lock()
			collected[i] = env.Results
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]json.RawMessage, 0, len(drugs))
	for _, results := range collected {
		merged = append(merged, results...)
	}
	return json.Marshal(map[string]any{"results": merged})
}

// Ping issues a minimal request against the events endpoint. Used by the
// readiness probe to verify the upstream is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.getRaw(ctx, endpointEvents, url.Values{"limit": {"1"}})
	return err
}

// getRaw issues the GET and verifies the body parses as an openFDA
// envelope, returning it unprojected.
func (c *Client) getRaw(ctx context.Context, ep endpoint, params url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, ep, params)
	if err != nil {
		return nil, err
	}
	if _, err := decodeEnvelope(ep.name, body); err != nil {
		c.recordError(ctx, ep, err)
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ─── Transport ───────────────────────────────────────────────────────────────

// get performs the outbound GET with retry and circuit breaking. The
// returned body is either the upstream response or a synthesized empty
// envelope when the upstream reported NOT_FOUND.
func (c *Client) get(ctx context.Context, ep endpoint, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	reqURL := c.baseURL + ep.path + "?" + params.Encode()

	start := time.Now()
	var body []byte
	err := c.retry.Do(ctx, func() error {
		return c.breaker.Execute(func() error {
			b, err := c.doOnce(ctx, ep, reqURL)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	}, retryTransient)

	if err != nil {
		ferr := transportError(ep, err)
		c.recordError(ctx, ep, ferr)
		if c.metrics != nil {
			c.metrics.RecordFDARequest(ctx, ep.name, ferr.Kind.String(), time.Since(start).Seconds())
		}
		return nil, ferr
	}

	if c.metrics != nil {
		c.metrics.RecordFDARequest(ctx, ep.name, "ok", time.Since(start).Seconds())
	}
	return body, nil
}

// doOnce issues a single timeout-bounded GET and maps the response status
// to the error taxonomy.
func (c *Client) doOnce(ctx context.Context, ep endpoint, reqURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, callErr(KindNetwork, ep.name, "building request failed", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, callErr(KindNetwork, ep.name, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, callErr(KindNetwork, ep.name, "reading response body failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, callErr(KindRateLimited, ep.name, "upstream rate limit exceeded (HTTP 429)", nil)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil

	default:
		// The upstream answers NOT_FOUND when a query matches nothing.
		// That is a valid empty result, not a failure.
		if code, msg := upstreamError(body); code == "NOT_FOUND" {
			return emptyEnvelope, nil
		} else if code != "" {
			if quotaMessage(msg) {
				return nil, callErr(KindRateLimited, ep.name, "upstream quota exceeded: "+msg, nil)
			}
			return nil, callErr(KindUpstream, ep.name,
				fmt.Sprintf("upstream error (HTTP %d) %s: %s", resp.StatusCode, code, msg), nil)
		}
		return nil, callErr(KindUpstream, ep.name,
			fmt.Sprintf("unexpected upstream status %d", resp.StatusCode), nil)
	}
}

// upstreamError extracts the error block from a non-2xx body, if present.
func upstreamError(body []byte) (code, message string) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return "", ""
	}
	return env.Error.Code, env.Error.Message
}

// quotaMessage reports whether an FDA error message indicates an exceeded
// request quota.
func quotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "limit exceeded")
}

// retryTransient reports whether err is worth another attempt: rate
// limits and network failures, but never an open circuit breaker.
func retryTransient(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	kind, ok := KindOf(err)
	return ok && (kind == KindNetwork || kind == KindRateLimited)
}

// transportError normalises retry/breaker outcomes into a typed *Error.
func transportError(ep endpoint, err error) *Error {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return callErr(KindNetwork, ep.name, "upstream circuit breaker is open", err)
	}
	// Context cancellation surfaced by the retry loop.
	return callErr(KindNetwork, ep.name, "request aborted", err)
}

// recordError increments the error counter when metrics are configured.
func (c *Client) recordError(ctx context.Context, ep endpoint, err error) {
	if c.metrics == nil {
		return
	}
	if kind, ok := KindOf(err); ok {
		c.metrics.RecordFDAError(ctx, ep.name, kind.String())
	}
}
