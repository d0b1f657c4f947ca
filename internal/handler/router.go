package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esats/OrderDispatcher.Apigateway/internal/aggregate"
	"github.com/esats/OrderDispatcher.Apigateway/internal/config"
	gwmiddleware "github.com/esats/OrderDispatcher.Apigateway/internal/middleware"
	"github.com/esats/OrderDispatcher.Apigateway/internal/proxy"
	"github.com/esats/OrderDispatcher.Apigateway/pkg/health"
	pkgmiddleware "github.com/esats/OrderDispatcher.Apigateway/pkg/middleware"
)

// NewRouter creates a chi router with global middleware, health endpoints,
// the aggregation endpoints, and pass-through proxy routes to the backend
// services.
func NewRouter(cfg *config.Config, agg *aggregate.Handler, sp *proxy.ServiceProxy, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack (applied in order).
	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: cfg.CORSAllowedMethods,
		AllowedHeaders: cfg.CORSAllowedHeaders,
		ExposedHeaders: []string{"X-Correlation-ID", "X-User-ID"},
		MaxAge:         cfg.CORSMaxAge,
		Environment:    cfg.Environment,
	}))
	r.Use(gwmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics("gateway"))
	r.Use(pkgmiddleware.Tracing("gateway"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	// Health check endpoints (no auth required).
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Metrics endpoint with IP allowlist protection.
	metricsHandler := metricsIPAllowlist(cfg.MetricsAllowedCIDRs, logger)(promhttp.Handler())
	r.Get("/metrics", metricsHandler.ServeHTTP)

	// Bearer tokens are validated once here; routes decide what an absent
	// identity means. The aggregation endpoints answer with a bare 401, the
	// proxied routes with a JSON 401.
	r.Group(func(r chi.Router) {
		r.Use(gwmiddleware.Authenticate(gwmiddleware.TokenOptions{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		}, logger))

		agg.Routes(r)

		r.Route("/api", func(r chi.Router) {
			r.Use(gwmiddleware.RequireAuth(logger))

			r.Handle("/catalog/*", sp.Handler("catalog"))
			r.Handle("/engagement/*", sp.Handler("engagement"))
			r.Handle("/order-management/*", sp.Handler("order-management"))
			r.Handle("/file/*", sp.Handler("file"))
		})
	})

	return r
}

// metricsIPAllowlist returns middleware that restricts access to requests
// from IPs within the configured CIDR ranges.
func metricsIPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("invalid metrics CIDR, skipping", slog.String("cidr", cidr), slog.String("error", err.Error()))
			continue
		}
		nets = append(nets, ipNet)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ip := net.ParseIP(host)

			allowed := false
			if ip != nil {
				for _, n := range nets {
					if n.Contains(ip) {
						allowed = true
						break
					}
				}
			}

			if !allowed {
				logger.Warn("metrics access denied",
					slog.String("ip", host),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "FORBIDDEN",
						"message": "metrics endpoint is restricted",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
