package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esats/OrderDispatcher.Apigateway/internal/aggregate"
	"github.com/esats/OrderDispatcher.Apigateway/internal/config"
	"github.com/esats/OrderDispatcher.Apigateway/internal/downstream"
	"github.com/esats/OrderDispatcher.Apigateway/internal/proxy"
	"github.com/esats/OrderDispatcher.Apigateway/pkg/health"
)

const testJWTSecret = "test-jwt-secret-for-router-tests"

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serviceEchoServer creates a test server that responds with the service name
// and requested path, allowing tests to verify which backend received the request.
func serviceEchoServer(serviceName string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The store roster path must answer with a decodable roster so the
		// aggregation pipeline can run end to end through the router.
		if r.URL.Path == "/api/engagement/store/getAll" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": serviceName,
			"path":    r.URL.Path,
		})
	}))
}

// testRouter holds a fully wired gateway router with echo backend servers.
type testRouter struct {
	handler http.Handler
	servers map[string]*httptest.Server
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()

	services := []string{"catalog", "engagement", "order-management", "file"}

	servers := make(map[string]*httptest.Server)
	for _, name := range services {
		servers[name] = serviceEchoServer(name)
	}

	cfg := &config.Config{
		Environment:               "development",
		JWTSecret:                 testJWTSecret,
		RateLimitRPS:              10000,
		RateLimitBurst:            20000,
		CORSAllowedOrigins:        []string{"*"},
		CORSAllowedMethods:        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:        []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-User-ID"},
		CORSMaxAge:                3600,
		MetricsAllowedCIDRs:       []string{"127.0.0.0/8", "10.0.0.0/8", "192.168.0.0/16"},
		CatalogServiceURL:         servers["catalog"].URL,
		EngagementServiceURL:      servers["engagement"].URL,
		OrderManagementServiceURL: servers["order-management"].URL,
		FileServiceURL:            servers["file"].URL,
		EngagementStoresPath:      "/api/engagement/store/getAll",
		EngagementStoresByIDsPath: "/api/engagement/store/getByIds",
		CatalogProductPath:        "/api/catalog/product/getByStoreId?storeId=",
		CatalogProductsByIDsPath:  "/api/catalog/product/getByIds",
		BasketDetailPath:          "/api/order-management/basket/detail",
		OrdersPath:                "/api/order-management/order/getAll",
		CustomerOrdersPath:        "/api/order-management/order/customerOrders",
		ImagesByMasterIDsPath:     "/images/getByMasterIds",
		DownstreamTimeoutSeconds:  5,
		DownstreamMaxConns:        10,
	}

	logger := testLogger()
	clients := downstream.NewSet(cfg)
	agg := aggregate.NewHandler(clients, cfg, logger)
	sp := proxy.NewServiceProxy(cfg, logger)
	healthHandler := health.NewHandler()
	router := NewRouter(cfg, agg, sp, healthHandler, logger)

	t.Cleanup(func() {
		for _, s := range servers {
			s.Close()
		}
	})

	return &testRouter{
		handler: router,
		servers: servers,
	}
}

func generateRouterTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return s
}

func validRouterJWT(t *testing.T) string {
	t.Helper()
	return generateRouterTestToken(t, jwt.MapClaims{
		"user_id": "test-user-123",
		"email":   "test@example.com",
		"role":    "user",
		"exp":     jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
	})
}

// --- Health Endpoint Tests ---

func TestRouter_HealthLive_Returns200(t *testing.T) {
	tr := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rr := httptest.NewRecorder()

	tr.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_HealthReady_Returns200(t *testing.T) {
	tr := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rr := httptest.NewRecorder()

	tr.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- Aggregation Route Tests ---

func TestRouter_AggregateRoute_WithoutToken_Returns401BareStatus(t *testing.T) {
	tr := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/aggregate/order-management/orders", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rr := httptest.NewRecorder()

	tr.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, rr.Body.String(), "aggregation rejections carry no body")
}

func TestRouter_AggregateRoute_NonGET_Returns405BareStatus(t *testing.T) {
	tr := newTestRouter(t)
	token := validRouterJWT(t)

	req := httptest.NewRequest(http.MethodPost, "/aggregate/engagement/stores-with-images", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	tr.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestRouter_AggregateRoute_WithValidJWT_RunsPipeline(t *testing.T) {
	tr := newTestRouter(t)
	token := validRouterJWT(t)

	req := httptest.NewRequest(http.MethodGet, "/aggregate/engagement/stores-with-images", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	tr.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

// --- Proxied Route Tests ---

func TestRouter_ProxiedRoutes_RequireAuth(t *testing.T) {
	tr := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"GET catalog", http.MethodGet, "/api/catalog/product/getAll"},
		{"POST order-management", http.MethodPost, "/api/order-management/order/create"},
		{"GET engagement", http.MethodGet, "/api/engagement/store/profile"},
		{"POST file", http.MethodPost, "/api/file/images/upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			rr := httptest.NewRecorder()

			tr.handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code,
				"proxied route %s %s should return 401 without auth", tt.method, tt.path)
			assert.Contains(t, rr.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestRouter_ProxiedRoutes_WithValidJWT_ReachCorrectService(t *testing.T) {
	tr := newTestRouter(t)
	token := validRouterJWT(t)

	tests := []struct {
		name            string
		method          string
		path            string
		expectedService string
	}{
		{"GET catalog", http.MethodGet, "/api/catalog/product/getAll", "catalog"},
		{"POST order-management", http.MethodPost, "/api/order-management/order/create", "order-management"},
		{"GET engagement", http.MethodGet, "/api/engagement/store/profile", "engagement"},
		{"GET file", http.MethodGet, "/api/file/images/5", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()

			tr.handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedService, body["service"])
			assert.Equal(t, tt.path, body["path"], "full path should be forwarded to the backend")
		})
	}
}
