// Package httpsource federates a remote endpoint over a JSON protocol.
// The client posts a query with a page number and reads one page of
// solutions per request; the server side, NewHandler, serves any
// executor.Source without keeping state between pages.
//
// Endpoints:
//
//	POST /query         QueryRequest -> QueryResponse
//	POST /estimate      QueryRequest -> EstimateResponse
//	GET  /capabilities  CapabilitiesResponse
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/annotations"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
	"github.com/wbrown/janus-federation/federation/query"
)

// RequestIDHeader carries the id of a query across pages
const RequestIDHeader = "X-Request-ID"

// Config describes a remote endpoint
type Config struct {
	Name string
	URL  string

	// Capabilities declared for the endpoint. Zero asks the endpoint.
	Capabilities query.Capabilities

	Timeout      time.Duration // Per request
	RetryCount   int           // Retries after a 5xx or transport error
	RetryDelay   time.Duration
	PageSize     int
	CloseTimeout time.Duration
}

// HTTPError is a non-2xx answer of the endpoint
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Source is a remote endpoint
type Source struct {
	config    Config
	client    *http.Client
	caps      query.Capabilities
	collector *annotations.Collector
}

// New creates a source without contacting the endpoint
func New(cfg Config) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 256
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Source{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		caps:   cfg.Capabilities,
	}
}

// Open creates a source and, unless capabilities are configured, asks
// the endpoint for them
func Open(ctx context.Context, cfg Config) (*Source, error) {
	s := New(cfg)
	if s.caps != 0 {
		return s, nil
	}
	var resp CapabilitiesResponse
	if err := s.do(ctx, http.MethodGet, "/capabilities", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: capabilities: %w", cfg.Name, err)
	}
	for _, name := range resp.Capabilities {
		if c, ok := query.ParseCapability(name); ok {
			s.caps = s.caps.With(c)
		}
	}
	return s, nil
}

// SetCollector reports page fetches and close timeouts to c
func (s *Source) SetCollector(c *annotations.Collector) {
	s.collector = c
}

func (s *Source) Name() string                     { return s.config.Name }
func (s *Source) Capabilities() query.Capabilities { return s.caps }

// Execute fetches the answers of q one page per request
func (s *Source) Execute(ctx context.Context, q *query.CQuery) (executor.Results, error) {
	req, err := EncodeQuery(q)
	if err != nil {
		return nil, err
	}
	req.ID = uuid.New().String()
	req.PageSize = s.config.PageSize
	vars := q.ResultVars().Sorted()

	fetch := func(ctx context.Context, page int) ([]federation.Solution, bool, error) {
		pageReq := *req
		pageReq.Page = page
		var resp QueryResponse
		if err := s.do(ctx, http.MethodPost, "/query", req.ID, &pageReq, &resp); err != nil {
			return nil, false, fmt.Errorf("%s: page %d: %w", s.config.Name, page, err)
		}
		sols, err := decodeRows(resp.Vars, resp.Rows)
		if err != nil {
			return nil, false, fmt.Errorf("%s: page %d: %w", s.config.Name, page, err)
		}
		return sols, resp.Last, nil
	}
	return executor.NewAsyncResults(ctx, vars, fetch, executor.AsyncOptions{
		Name:         s.config.Name,
		CloseTimeout: s.config.CloseTimeout,
		Collector:    s.collector,
	}), nil
}

// EstimateCardinality asks the endpoint; failures yield Unknown
func (s *Source) EstimateCardinality(q *query.CQuery) cardinality.Cardinality {
	if len(q.RequiredInputVars()) > 0 {
		return cardinality.Unknown
	}
	req, err := EncodeQuery(q)
	if err != nil {
		return cardinality.Unknown
	}
	req.ID = uuid.New().String()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	var resp EstimateResponse
	if err := s.do(ctx, http.MethodPost, "/estimate", req.ID, req, &resp); err != nil {
		return cardinality.Unknown
	}
	r, ok := cardinality.ParseReliability(resp.Reliability)
	if !ok {
		return cardinality.Unknown
	}
	return cardinality.Of(resp.Value, r)
}

// do sends one request, retrying on 5xx and transport errors
func (s *Source) do(ctx context.Context, method, path, id string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}
		lastErr = s.doOnce(ctx, method, s.config.URL+path, id, payload, result)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if httpErr, ok := lastErr.(*HTTPError); ok && httpErr.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}

func (s *Source) doOnce(ctx context.Context, method, url, id string, payload []byte, result interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
