package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"golang.org/x/time/rate"
)

// DefaultMaxGraphBody caps a single subgraph response.
const DefaultMaxGraphBody = 8 << 20

// GraphClient runs GraphQL queries against a single endpoint. Every HTTP
// attempt waits on the rate limiter; 429 and 5xx responses are retried.
type GraphClient struct {
	Endpoint string
	// Retries bounds extra attempts on 429 and 5xx responses.
	Retries    int
	RetryDelay time.Duration
	// MaxBody caps the bytes read from one response.
	MaxBody int64

	limiter *rate.Limiter
	gql     *graphql.Client
}

// NewGraphClient builds a client allowing rps requests per second. rps <= 0
// disables limiting.
func NewGraphClient(endpoint string, rps float64) *GraphClient {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	c := &GraphClient{
		Endpoint:   strings.TrimSpace(endpoint),
		Retries:    2,
		RetryDelay: 200 * time.Millisecond,
		MaxBody:    DefaultMaxGraphBody,
		limiter:    rate.NewLimiter(limit, burst),
	}
	hc := &http.Client{
		Timeout:   12 * time.Second,
		Transport: &graphTransport{client: c, base: http.DefaultTransport},
	}
	c.gql = graphql.NewClient(c.Endpoint, graphql.WithHTTPClient(hc))
	return c
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("subgraph http %d", e.StatusCode)
	}
	return fmt.Sprintf("subgraph http %d: %s", e.StatusCode, b)
}

// Query runs query and decodes the data member into out.
func (c *GraphClient) Query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	if c.Endpoint == "" {
		return fmt.Errorf("subgraph endpoint is required")
	}
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	if err := c.gql.Run(ctx, req, out); err != nil {
		return fmt.Errorf("subgraph query: %w", err)
	}
	return nil
}

// graphTransport rate limits and retries each request, and hands the graphql
// client a fully read, size-checked body.
type graphTransport struct {
	client *GraphClient
	base   http.RoundTripper
}

func (t *graphTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var res *http.Response
	err := withRetry(req.Context(), t.client.Retries, t.client.RetryDelay, func(ctx context.Context) error {
		var attemptErr error
		res, attemptErr = t.attempt(ctx, req)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *graphTransport) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := t.client.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind graphql request: %w", err)
		}
		out.Body = body
	}

	res, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	body, err := readLimited(res.Body, t.client.MaxBody)
	res.Body.Close()
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	return res, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxGraphBody
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read subgraph response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("subgraph response exceeds %d bytes", limit)
	}
	return body, nil
}
