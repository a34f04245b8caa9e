package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/transport"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

type constructor func(cfg fin.ServiceConfig, deps Deps, breaker *gobreaker.CircuitBreaker[*transport.Response]) (PaymentService, error)

// constructors maps each API type to its adapter.
var constructors = map[fin.APIType]constructor{
	fin.APITypePayPal: func(cfg fin.ServiceConfig, deps Deps, breaker *gobreaker.CircuitBreaker[*transport.Response]) (PaymentService, error) {
		return NewPayPal(cfg, deps, breaker)
	},
}

// BreakerSettings configures the circuit breaker kept per service.
type BreakerSettings struct {
	MinRequests      uint32
	FailureRatio     float64
	Interval         time.Duration
	Timeout          time.Duration
	HalfOpenRequests uint32
}

// DefaultBreakerSettings trips after 60% failures over at least 10 requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:      10,
		FailureRatio:     0.6,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 10,
	}
}

// Factory builds adapters from stored service configurations. Adapters
// are cheap and built per call; circuit breakers outlive them.
type Factory struct {
	deps     Deps
	settings BreakerSettings

	mu       sync.Mutex
	breakers map[uuid.UUID]*gobreaker.CircuitBreaker[*transport.Response]
}

func NewFactory(deps Deps, settings BreakerSettings) *Factory {
	return &Factory{
		deps:     deps,
		settings: settings,
		breakers: make(map[uuid.UUID]*gobreaker.CircuitBreaker[*transport.Response]),
	}
}

// Adapter loads the service configuration and returns the adapter for its
// API type. Unknown services and API types are configuration errors.
func (f *Factory) Adapter(ctx context.Context, serviceID uuid.UUID) (PaymentService, error) {
	cfg, err := f.deps.Store.Services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, domainerrors.NewConfigurationError(fmt.Sprintf("payment service %s", serviceID), err)
	}
	return f.New(*cfg)
}

// New returns the adapter for a configuration snapshot.
func (f *Factory) New(cfg fin.ServiceConfig) (PaymentService, error) {
	build, ok := constructors[cfg.APIType]
	if !ok {
		return nil, domainerrors.NewConfigurationError(
			fmt.Sprintf("payment service %s has API type %q", cfg.ID, cfg.APIType),
			domainerrors.ErrUnknownAPIType,
		)
	}
	return build(cfg, f.deps, f.breaker(cfg))
}

func (f *Factory) breaker(cfg fin.ServiceConfig) *gobreaker.CircuitBreaker[*transport.Response] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[cfg.ID]; ok {
		return cb
	}

	s := f.settings
	metrics := f.deps.Metrics
	cb := gobreaker.NewCircuitBreaker[*transport.Response](gobreaker.Settings{
		Name:        fmt.Sprintf("%s:%s", cfg.APIType, cfg.ID),
		MaxRequests: s.HalfOpenRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.deps.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	f.breakers[cfg.ID] = cb
	return cb
}
