package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenSource struct {
	token *fin.Token
	err   error
	calls atomic.Int32
}

func (s *stubTokenSource) EnsureToken(context.Context) (*fin.Token, error) {
	s.calls.Add(1)
	return s.token, s.err
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(fin.ServiceConfig{
		ID:       uuid.New(),
		APIType:  fin.APITypePayPal,
		BaseURL:  baseURL,
		Username: "client-id",
		Password: "client-secret",
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_URL(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/")

	assert.Equal(t, "https://api.example.com/v1/catalogs/products", c.URL("/v1/catalogs/products", nil))
	assert.Equal(t,
		"https://api.example.com/v1/identity/oauth2/userinfo?schema=paypalv1.1",
		c.URL("v1/identity/oauth2/userinfo", url.Values{"schema": {"paypalv1.1"}}),
	)
}

func TestClient_Send_NoBaseURL(t *testing.T) {
	c := newTestClient(t, "")

	status, err := c.Send(context.Background(), Request{Method: http.MethodGet, Path: "/v1/x"})

	assert.Zero(t, status)
	var cfgErr *domainerrors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, domainerrors.ErrNoBaseURL)
}

func TestClient_Send_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/catalogs/products", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "req-1", r.Header.Get("PayPal-Request-Id"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"Membership"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PROD-1"}`))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	c := newTestClient(t, srv.URL, WithMetrics(metrics))

	var out struct {
		ID string `json:"id"`
	}
	status, err := c.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/v1/catalogs/products",
		Body:   map[string]string{"name": "Membership"},
		Header: http.Header{"PayPal-Request-Id": {"req-1"}},
		Out:    &out,
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PROD-1", out.ID)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "test_provider_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			found = true
			assert.Equal(t, 1.0, m.GetCounter().GetValue())
		}
	}
	assert.True(t, found, "provider request counter not recorded")
}

func TestClient_Send_GetSendsNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var out string
	_, err := c.Send(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/ping",
		Body:   map[string]string{"ignored": "yes"},
		Decode: EncodingText,
		Out:    &out,
	})

	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestClient_Send_TextAndBytes(t *testing.T) {
	tests := []struct {
		name        string
		encode      Encoding
		body        any
		contentType string
	}{
		{"text", EncodingText, "grant_type=client_credentials", "text/plain; charset=UTF-8"},
		{"bytes", EncodingBytes, []byte{0x01, 0x02}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received []byte
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.contentType, r.Header.Get("Content-Type"))
				received, _ = io.ReadAll(r.Body)
				_, _ = w.Write([]byte{0xff})
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)

			var out []byte
			_, err := c.Send(context.Background(), Request{
				Method: http.MethodPost,
				Path:   "/upload",
				Body:   tt.body,
				Encode: tt.encode,
				Decode: EncodingBytes,
				Out:    &out,
			})

			require.NoError(t, err)
			assert.NotEmpty(t, received)
			assert.Equal(t, []byte{0xff}, out)
		})
	}
}

func TestClient_Send_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	status, err := c.Send(context.Background(), Request{Method: http.MethodPost, Path: "/", Auth: AuthBasic})

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestClient_Send_TokenAuth(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Run("token attached", func(t *testing.T) {
		ts := &stubTokenSource{token: &fin.Token{AccessToken: "abc"}}
		c := newTestClient(t, srv.URL)
		c.UseTokenSource(ts)

		_, err := c.Send(context.Background(), Request{Path: "/", Auth: AuthToken})

		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", authHeader)
		assert.Equal(t, int32(1), ts.calls.Load())
	})

	t.Run("token source failure proceeds unauthenticated", func(t *testing.T) {
		ts := &stubTokenSource{err: errors.New("no credentials")}
		c := newTestClient(t, srv.URL)
		c.UseTokenSource(ts)

		_, err := c.Send(context.Background(), Request{Path: "/", Auth: AuthToken})

		require.NoError(t, err)
		assert.Empty(t, authHeader)
	})

	t.Run("token source not consulted for other modes", func(t *testing.T) {
		ts := &stubTokenSource{token: &fin.Token{AccessToken: "abc"}}
		c := newTestClient(t, srv.URL)
		c.UseTokenSource(ts)

		_, err := c.Send(context.Background(), Request{Path: "/", Auth: AuthNone})

		require.NoError(t, err)
		assert.Zero(t, ts.calls.Load())
		assert.Empty(t, authHeader)
	})
}

func TestClient_Send_BasicChallengeFallback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if _, _, ok := r.BasicAuth(); !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="payments"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body), "body must be replayed")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	status, err := c.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/",
		Body:   map[string]int{"a": 1},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(2), hits.Load())

	noCreds, err := New(fin.ServiceConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	status, err = noCreds.Send(context.Background(), Request{Path: "/"})
	assert.Equal(t, http.StatusUnauthorized, status)
	var pe *domainerrors.ProviderError
	require.True(t, errors.As(err, &pe))
}

func TestClient_Send_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var out map[string]any
	status, err := c.Send(context.Background(), Request{Method: http.MethodPost, Path: "/v1/billing/plans", Body: struct{}{}, Out: &out})

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	var pe *domainerrors.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, `422 {"name":"UNPROCESSABLE_ENTITY"}`, err.Error())
	assert.Nil(t, out)
}

func TestClient_Send_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var out map[string]any
	status, err := c.Send(context.Background(), Request{Path: "/", Out: &out})

	assert.Equal(t, http.StatusOK, status)
	var de *domainerrors.DecodeError
	require.True(t, errors.As(err, &de))
}

func TestClient_Send_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base, WithTimeout(time.Second))

	status, err := c.Send(context.Background(), Request{Path: "/"})

	assert.Zero(t, status)
	var te *domainerrors.TransportError
	require.True(t, errors.As(err, &te))
}

func TestClient_Send_Proxy(t *testing.T) {
	var proxiedHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost = r.Host
		_, _ = w.Write([]byte(`{"status":"ACTIVE"}`))
	}))
	defer proxy.Close()

	c, err := New(fin.ServiceConfig{
		BaseURL:  "http://payments.invalid",
		UseProxy: true,
		Proxy:    proxy.URL,
	})
	require.NoError(t, err)

	var out struct {
		Status string `json:"status"`
	}
	_, err = c.Send(context.Background(), Request{Path: "/v1/billing/subscriptions/I-1", Out: &out})

	require.NoError(t, err)
	assert.Equal(t, "payments.invalid", proxiedHost)
	assert.Equal(t, "ACTIVE", out.Status)
}

func TestClient_Send_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})
	c := newTestClient(t, srv.URL, WithBreaker(cb))

	for range 2 {
		status, err := c.Send(context.Background(), Request{Path: "/"})
		assert.Equal(t, http.StatusBadGateway, status)
		var pe *domainerrors.ProviderError
		assert.True(t, errors.As(err, &pe))
	}

	status, err := c.Send(context.Background(), Request{Path: "/"})

	assert.Zero(t, status)
	assert.ErrorIs(t, err, domainerrors.ErrProviderUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}
