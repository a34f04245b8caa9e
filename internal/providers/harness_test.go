package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testCallbackBase = "https://shop.example.org"

// recorded is one request seen by the fake PayPal server.
type recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	Body          []byte
}

func (r recorded) json(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m))
	return m
}

// fakePayPal records requests and answers them with registered handlers.
type fakePayPal struct {
	*httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []recorded
}

func newFakePayPal(t *testing.T) *fakePayPal {
	t.Helper()
	f := &fakePayPal{mux: http.NewServeMux()}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recorded{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("PayPal-Request-Id"),
			Body:          body,
		})
		f.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// reply registers a canned JSON answer for pattern.
func (f *fakePayPal) reply(pattern string, status int, body string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakePayPal) calls(method, path string) []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recorded
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakePayPal) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// harness wires a PayPal adapter to in-memory repositories and a fake server.
type harness struct {
	paypal        *fakePayPal
	service       *fin.ServiceConfig
	services      *testutil.MockServiceRepository
	products      *testutil.MockProductRepository
	plans         *testutil.MockPlanRepository
	registrations *testutil.MockRegistrationRepository
	subscriptions *testutil.MockSubscriptionRepository
	subscribers   *testutil.MockSubscriberRepository
	log           *testutil.MockLogRepository
	hook          *testutil.MockStatusHook
	factory       *Factory
}

// newHarness returns a harness whose service holds a valid access token.
func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := newFakePayPal(t)

	svc := testutil.NewTestService(fake.URL)
	svc.Token = fin.Token{
		AccessToken: "valid-token",
		Type:        "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}

	h := &harness{
		paypal:        fake,
		service:       svc,
		services:      testutil.NewMockServiceRepository(svc),
		products:      testutil.NewMockProductRepository(),
		plans:         testutil.NewMockPlanRepository(),
		registrations: testutil.NewMockRegistrationRepository(),
		subscriptions: testutil.NewMockSubscriptionRepository(),
		subscribers:   testutil.NewMockSubscriberRepository(),
		log:           testutil.NewMockLogRepository(),
		hook:          &testutil.MockStatusHook{},
	}
	h.factory = NewFactory(h.deps(), DefaultBreakerSettings())
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Store: Store{
			Services:      h.services,
			Products:      h.products,
			Plans:         h.plans,
			Registrations: h.registrations,
			Subscriptions: h.subscriptions,
			Subscribers:   h.subscribers,
			Log:           h.log,
		},
		Hook:           h.hook,
		Callbacks:      CallbackURLs{BaseURL: testCallbackBase},
		Logger:         zerolog.Nop(),
		RequestTimeout: 5 * time.Second,
	}
}

func (h *harness) adapter(t *testing.T) PaymentService {
	t.Helper()
	a, err := h.factory.Adapter(context.Background(), h.service.ID)
	require.NoError(t, err)
	return a
}

// seedProduct stores a product, optionally already registered under refNo.
func (h *harness) seedProduct(t *testing.T, refNo string) *fin.Product {
	t.Helper()
	p := testutil.NewTestProduct()
	h.products.Add(p, "Example Org")
	if refNo != "" {
		require.NoError(t, h.registrations.UpsertProductRegistration(context.Background(), &fin.ProductRegistration{
			ProductID:    p.ID,
			ServiceID:    h.service.ID,
			IsRegistered: true,
			RefNo:        refNo,
		}))
	}
	return p
}

// seedPlan stores an active plan, optionally already registered under refNo.
func (h *harness) seedPlan(t *testing.T, product *fin.Product, refNo string) *fin.SubscriptionPlan {
	t.Helper()
	plan := testutil.NewTestPlan(product.ID)
	h.plans.Add(plan)
	if refNo != "" {
		require.NoError(t, h.registrations.UpsertPlanRegistration(context.Background(), &fin.PlanRegistration{
			PlanID:       plan.ID,
			ServiceID:    h.service.ID,
			IsRegistered: true,
			RefNo:        refNo,
		}))
	}
	return plan
}

func (h *harness) messages(result fin.LogResult) []string {
	var out []string
	for _, e := range h.log.WithResult(result) {
		out = append(out, e.Action+": "+e.Reason)
	}
	return out
}
