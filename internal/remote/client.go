package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cluster-inspection/pkg/logging"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// ReportPrefix is the path segment of the authoritative, server-cache-bypassing routes.
	ReportPrefix = "report"

	ParamCluster   = "cluster"
	ParamStartTime = "start_time"
	ParamEndTime   = "end_time"

	maxErrorBody = 512
)

var (
	// ErrNetwork marks transport and HTTP status failures.
	ErrNetwork = errors.New("network failure")
	// ErrMalformedBody marks a 2xx response whose body is not JSON.
	ErrMalformedBody = errors.New("response body is not valid JSON")
	// ErrInvalidTime marks a time parameter that could not be parsed; no request is sent.
	ErrInvalidTime = errors.New("invalid time")
)

// FetchError is returned for every failed request. It names the endpoint and keeps the
// underlying cause.
type FetchError struct {
	Endpoint   string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if errors.Is(e.Err, ErrMalformedBody) || errors.Is(e.Err, ErrInvalidTime) {
		return []error{e.Err}
	}
	return []error{ErrNetwork, e.Err}
}

// Params are the query parameters of a fetch.
type Params map[string]string

// Client performs GET calls against the namespaced telemetry API.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	loc     *time.Location
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithRetryMax enables transport-level retries of failed GETs.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// WithLocation sets the zone used for time parameters that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New creates a client for baseURL, e.g. "http://localhost:8088/cluster-inspection/api".
func New(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{}
	// hand non-2xx responses back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL builds the request URL for endpoint; forced fetches use the report route.
func (c *Client) URL(endpoint string, force bool) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	if force {
		return c.baseURL + "/" + ReportPrefix + "/" + endpoint
	}
	return c.baseURL + "/" + endpoint
}

// Fetch issues GET {base}/{endpoint} (or {base}/report/{endpoint} when force is set) and
// returns the raw JSON payload. start_time and end_time are normalized to second
// precision UTC before sending; params is not modified.
func (c *Client) Fetch(ctx context.Context, endpoint string, params Params, force bool) (json.RawMessage, error) {
	target := c.URL(endpoint, force)

	query, err := c.encodeParams(params)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, URL: target, Err: err}
	}
	if query != "" {
		target += "?" + query
	}

	logging.Debug("Remote", "GET %s", target)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Error("Remote", err, "Error fetching %s", endpoint)
		return nil, &FetchError{Endpoint: endpoint, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		ferr := &FetchError{Endpoint: endpoint, URL: target, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode) + ": " + snippet)}
		logging.Error("Remote", ferr, "Error fetching %s", endpoint)
		return nil, ferr
	}

	if !json.Valid(body) {
		return nil, &FetchError{Endpoint: endpoint, URL: target, StatusCode: resp.StatusCode, Err: ErrMalformedBody}
	}
	return json.RawMessage(body), nil
}

type clustersResponse struct {
	Clusters []string `json:"clusters"`
}

// FetchClusters loads the authoritative cluster list from {base}/clusters.
func (c *Client) FetchClusters(ctx context.Context) ([]string, error) {
	raw, err := c.Fetch(ctx, "clusters", nil, false)
	if err != nil {
		return nil, err
	}
	var resp clustersResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &FetchError{Endpoint: "clusters", URL: c.URL("clusters", false), Err: fmt.Errorf("%w: %v", ErrMalformedBody, err)}
	}
	return resp.Clusters, nil
}

// FetchNodes fetches the node collection of cluster for the window.
func (c *Client) FetchNodes(ctx context.Context, cluster, start, end string, force bool) (json.RawMessage, error) {
	return c.Fetch(ctx, "nodes", windowParams(cluster, start, end), force)
}

// FetchPods fetches the pod collection of cluster for the window.
func (c *Client) FetchPods(ctx context.Context, cluster, start, end string, force bool) (json.RawMessage, error) {
	return c.Fetch(ctx, "pods", windowParams(cluster, start, end), force)
}

// FetchEvents fetches the event collection of cluster for the window.
func (c *Client) FetchEvents(ctx context.Context, cluster, start, end string, force bool) (json.RawMessage, error) {
	return c.Fetch(ctx, "events", windowParams(cluster, start, end), force)
}

func windowParams(cluster, start, end string) Params {
	return Params{ParamCluster: cluster, ParamStartTime: start, ParamEndTime: end}
}

func (c *Client) encodeParams(params Params) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		v := params[k]
		if (k == ParamStartTime || k == ParamEndTime) && v != "" {
			normalized, err := NormalizeTime(v, c.loc)
			if err != nil {
				return "", fmt.Errorf("invalid %s: %w", k, err)
			}
			v = normalized
		}
		values.Set(k, v)
	}
	return values.Encode(), nil
}

// leveledLogger routes retryablehttp's logs through pkg/logging.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) {
	logging.Error("Remote", nil, "%s %v", msg, kv)
}

func (leveledLogger) Info(msg string, kv ...interface{}) {
	logging.Debug("Remote", "%s %v", msg, kv)
}

func (leveledLogger) Debug(msg string, kv ...interface{}) {
	logging.Debug("Remote", "%s %v", msg, kv)
}

func (leveledLogger) Warn(msg string, kv ...interface{}) {
	logging.Warn("Remote", "%s %v", msg, kv)
}
