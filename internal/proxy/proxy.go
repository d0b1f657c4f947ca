package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/esats/OrderDispatcher.Apigateway/internal/config"
)

// ServiceProxy manages reverse proxies to the backend services for the
// pass-through routes. Each backend sits behind its own circuit breaker so a
// degraded service sheds load instead of tying up gateway connections. The
// aggregation pipelines do not go through this proxy and are never broken.
type ServiceProxy struct {
	routes map[string]*httputil.ReverseProxy
	logger *slog.Logger
}

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "gateway_circuit_breaker_state",
		Help: "Current state of a backend circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"service"},
)

// NewServiceProxy creates a ServiceProxy with a reverse proxy for each
// backend service.
func NewServiceProxy(cfg *config.Config, logger *slog.Logger) *ServiceProxy {
	sp := &ServiceProxy{
		routes: make(map[string]*httputil.ReverseProxy),
		logger: logger,
	}

	serviceURLs := map[string]string{
		"catalog":          cfg.CatalogServiceURL,
		"engagement":       cfg.EngagementServiceURL,
		"order-management": cfg.OrderManagementServiceURL,
		"file":             cfg.FileServiceURL,
	}

	for name, rawURL := range serviceURLs {
		target, err := url.Parse(rawURL)
		if err != nil {
			logger.Error("invalid service URL",
				slog.String("service", name),
				slog.String("url", rawURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.Transport = newBreakerTransport(name, http.DefaultTransport, logger)
		proxy.ErrorHandler = sp.errorHandler(name)
		sp.routes[name] = proxy

		logger.Info("registered service proxy",
			slog.String("service", name),
			slog.String("target", rawURL),
		)
	}

	return sp
}

// Handler returns an http.Handler that proxies requests to the named backend
// service.
func (sp *ServiceProxy) Handler(serviceName string) http.Handler {
	proxy, ok := sp.routes[serviceName]
	if !ok {
		sp.logger.Error("no proxy registered for service", slog.String("service", serviceName))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":"SERVICE_UNAVAILABLE","message":"service not configured"}`, http.StatusBadGateway)
		})
	}
	return proxy
}

// errorHandler logs proxy failures and maps them to a JSON error response:
// an open breaker answers 503, anything else 502.
func (sp *ServiceProxy) errorHandler(serviceName string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		sp.logger.Error("proxy error",
			slog.String("service", serviceName),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code":"SERVICE_UNAVAILABLE","message":"upstream service temporarily unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"BAD_GATEWAY","message":"upstream service unavailable"}`))
	}
}

// breakerTransport wraps a RoundTripper with a circuit breaker. 5xx
// responses count as failures; the response itself is still returned to the
// caller so the client sees the real upstream status while the breaker
// accumulates.
type breakerTransport struct {
	name    string
	breaker *gobreaker.CircuitBreaker[*http.Response]
	inner   http.RoundTripper
}

func newBreakerTransport(name string, inner http.RoundTripper, logger *slog.Logger) *breakerTransport {
	settings := gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}

	breakerState.WithLabelValues(name).Set(0)

	return &breakerTransport{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		inner:   inner,
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var upstream *http.Response
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.inner.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			upstream = resp
			return nil, fmt.Errorf("server error %d from %s", resp.StatusCode, t.name)
		}
		return resp, nil
	})
	if err != nil {
		// A recorded 5xx still flows back to the caller unchanged.
		if upstream != nil {
			return upstream, nil
		}
		return nil, err
	}
	return resp, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
