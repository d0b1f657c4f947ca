package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/esats/OrderDispatcher.Apigateway/internal/config"
	"github.com/esats/OrderDispatcher.Apigateway/pkg/httpclient"
)

const authorizationHeader = "Authorization"

// Client is an addressable HTTP client for one backend service. It carries a
// fixed base URL and forwards the caller's raw Authorization header on every
// request; downstream services re-validate the token themselves.
type Client struct {
	name    string
	baseURL string
	http    *httpclient.Client
}

// Name returns the backend service name, used in logs and errors.
func (c *Client) Name() string {
	return c.name
}

// Get issues a GET to baseURL+path with the given Authorization header value.
func (c *Client) Get(ctx context.Context, path, auth string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.name, err)
	}
	setAuth(req, auth)
	return c.http.Do(ctx, req)
}

// PostJSON issues a POST to baseURL+path with a JSON-encoded body and the
// given Authorization header value.
func (c *Client) PostJSON(ctx context.Context, path string, body any, auth string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request body: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, auth)
	return c.http.Do(ctx, req)
}

func setAuth(req *http.Request, auth string) {
	if auth != "" {
		req.Header.Set(authorizationHeader, auth)
	}
}

// Set is the fixed collection of backend clients, built once at startup and
// shared read-only across requests.
type Set struct {
	Catalog         *Client
	Engagement      *Client
	OrderManagement *Client
	File            *Client
}

// NewSet builds one client per backend service over a shared pooled
// transport. Aggregation calls are single-shot: failures pass through or
// degrade, so retries are disabled.
func NewSet(cfg *config.Config) *Set {
	shared := httpclient.New(httpclient.Config{
		Timeout:         time.Duration(cfg.DownstreamTimeoutSeconds) * time.Second,
		MaxRetries:      0,
		MaxConnsPerHost: cfg.DownstreamMaxConns,
	})

	return &Set{
		Catalog:         &Client{name: "catalog", baseURL: cfg.CatalogServiceURL, http: shared},
		Engagement:      &Client{name: "engagement", baseURL: cfg.EngagementServiceURL, http: shared},
		OrderManagement: &Client{name: "order-management", baseURL: cfg.OrderManagementServiceURL, http: shared},
		File:            &Client{name: "file", baseURL: cfg.FileServiceURL, http: shared},
	}
}

// NewClient builds a single named client; used by tests to point a client at
// an httptest server.
func NewClient(name, baseURL string, http *httpclient.Client) *Client {
	return &Client{name: name, baseURL: baseURL, http: http}
}

// StatusError reports a non-success HTTP status from a required downstream
// call. The aggregation pipelines mirror the exact status code back to the
// caller.
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}
