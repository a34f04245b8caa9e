// Package transport is the authenticated HTTP client used by payment
// service adapters.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 30 * time.Second

// AuthMode selects how a request is authenticated.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthBasic
	AuthToken
)

// TokenSource supplies access tokens for AuthToken requests.
type TokenSource interface {
	EnsureToken(ctx context.Context) (*fin.Token, error)
}

// Request describes one call to the payment service. Path is relative to
// the service base URL. Decoded response data is written to Out.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
	Auth   AuthMode
	Encode Encoding
	Decode Encoding
	Out    any
}

// Response is a raw HTTP exchange with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client sends requests to one payment service.
type Client struct {
	baseURL    string
	username   string
	password   string
	apiType    string
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[*Response]
	metrics    *observability.Metrics
	logger     zerolog.Logger

	timeout      time.Duration
	roundTripper http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBreaker routes requests through a circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*Response]) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRoundTripper replaces the base transport. Proxy settings of the
// service are not applied to a replaced transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) { c.roundTripper = rt }
}

// New builds a client from a service configuration snapshot.
func New(cfg fin.ServiceConfig, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		apiType:  string(cfg.APIType),
		timeout:  defaultTimeout,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.roundTripper
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if proxy := cfg.ProxyURL(); proxy != "" {
			if !strings.Contains(proxy, "://") {
				proxy = "http://" + proxy
			}
			u, err := url.Parse(proxy)
			if err != nil {
				return nil, domainerrors.NewConfigurationError("invalid proxy URL", err)
			}
			t.Proxy = http.ProxyURL(u)
		}
		base = t
	}

	c.httpClient = &http.Client{
		Transport: otelhttp.NewTransport(base),
		Timeout:   c.timeout,
	}
	return c, nil
}

// UseTokenSource sets the token source for AuthToken requests.
func (c *Client) UseTokenSource(ts TokenSource) {
	c.tokens = ts
}

// HTTPClient returns the underlying client, carrying proxy, timeout and
// tracing configuration.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// URL joins the base URL with path and the encoded query.
func (c *Client) URL(path string, query url.Values) string {
	u := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Send performs the request and decodes the response into req.Out.
//
// The returned status is 0 when no HTTP response was received. Errors are
// *errors.ConfigurationError (no base URL), *errors.TransportError
// (network failure), *errors.ProviderError (non-2xx status) or
// *errors.DecodeError (malformed body).
func (c *Client) Send(ctx context.Context, req Request) (int, error) {
	if c.baseURL == "" {
		return 0, domainerrors.NewConfigurationError("no base URL set", domainerrors.ErrNoBaseURL)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		payload     []byte
		contentType string
	)
	if method != http.MethodGet && req.Body != nil {
		var err error
		payload, contentType, err = encodeBody(req.Encode, req.Body)
		if err != nil {
			return 0, err
		}
	}

	target := c.URL(req.Path, req.Query)
	authorization := c.authorization(ctx, req.Auth)

	build := func(forceBasic bool) (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
		httpReq.Header.Set("Accept", req.Decode.accept())

		switch {
		case forceBasic:
			httpReq.SetBasicAuth(c.username, c.password)
		case authorization != "":
			httpReq.Header.Set("Authorization", authorization)
		}
		return httpReq, nil
	}

	start := time.Now()
	resp, err := c.roundTrip(build)
	c.observe(method, resp, start)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", req.Path).Msg("payment service unreachable")
		return 0, &domainerrors.TransportError{Err: err}
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("payment service request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &domainerrors.ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}

	if err := decodeBody(req.Decode, resp.Body, req.Out); err != nil {
		return resp.StatusCode, &domainerrors.DecodeError{StatusCode: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}

// authorization returns the Authorization header value for mode, or "".
// A failing token source leaves the request unauthenticated.
func (c *Client) authorization(ctx context.Context, mode AuthMode) string {
	switch mode {
	case AuthBasic:
		if c.hasCredentials() {
			r := &http.Request{Header: http.Header{}}
			r.SetBasicAuth(c.username, c.password)
			return r.Header.Get("Authorization")
		}
	case AuthToken:
		if c.tokens == nil {
			return ""
		}
		token, err := c.tokens.EnsureToken(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Msg("no access token, sending request unauthenticated")
			return ""
		}
		if token != nil && token.AccessToken != "" {
			return token.AuthorizationType() + " " + token.AccessToken
		}
	}
	return ""
}

func (c *Client) hasCredentials() bool {
	return c.username != "" && c.password != ""
}

func (c *Client) roundTrip(build func(forceBasic bool) (*http.Request, error)) (*Response, error) {
	if c.breaker == nil {
		return c.do(build)
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		resp, err := c.do(build)
		if err == nil && resp.StatusCode >= http.StatusInternalServerError {
			// counted as a breaker failure, still classified by Send
			return resp, &domainerrors.ProviderError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}
		return resp, err
	})
	if resp != nil {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrProviderUnavailable, err)
	}
	return nil, err
}

// do executes one exchange. A 401 with a Basic challenge is answered once
// with the client credentials, whatever the requested auth mode.
func (c *Client) do(build func(forceBasic bool) (*http.Request, error)) (*Response, error) {
	httpReq, err := build(false)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode == http.StatusUnauthorized && c.answersChallenge(httpReq, httpResp) {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		httpResp.Body.Close()

		if httpReq, err = build(true); err != nil {
			return nil, err
		}
		if httpResp, err = c.httpClient.Do(httpReq); err != nil {
			return nil, err
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) answersChallenge(req *http.Request, resp *http.Response) bool {
	if !c.hasCredentials() {
		return false
	}
	if _, _, sent := req.BasicAuth(); sent {
		return false
	}
	for _, challenge := range resp.Header.Values("WWW-Authenticate") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(challenge)), "basic") {
			return true
		}
	}
	return false
}

func (c *Client) observe(method string, resp *Response, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	c.metrics.ProviderRequestsTotal.WithLabelValues(c.apiType, method, status).Inc()
	c.metrics.ProviderRequestDuration.WithLabelValues(c.apiType, method).Observe(time.Since(start).Seconds())
}
