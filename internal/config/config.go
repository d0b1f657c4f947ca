package config

import (
	"fmt"

	pkgconfig "github.com/esats/OrderDispatcher.Apigateway/pkg/config"
)

// Config holds all configuration for the API gateway.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	// JWT authentication
	JWTSecret   string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	JWTIssuer   string `env:"JWT_ISSUER" envDefault:"order-dispatcher"`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:"order-dispatcher-clients"`

	// Backend service base URLs
	CatalogServiceURL         string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`
	EngagementServiceURL      string `env:"ENGAGEMENT_SERVICE_URL" envDefault:"http://localhost:8002"`
	OrderManagementServiceURL string `env:"ORDER_MANAGEMENT_SERVICE_URL" envDefault:"http://localhost:8003"`
	FileServiceURL            string `env:"FILE_SERVICE_URL" envDefault:"http://localhost:8004"`

	// Downstream operation paths used by the aggregation pipelines.
	// The product path is a prefix the store id is appended to, matching the
	// catalog service's route shape.
	EngagementStoresPath      string `env:"ENGAGEMENT_STORES_PATH" envDefault:"/api/engagement/store/getAll"`
	EngagementStoresByIDsPath string `env:"ENGAGEMENT_STORES_BY_IDS_PATH" envDefault:"/api/engagement/store/getByIds"`
	CatalogProductPath        string `env:"CATALOG_PRODUCT_PATH" envDefault:"/api/catalog/product/getByStoreId?storeId="`
	CatalogProductsByIDsPath  string `env:"CATALOG_PRODUCTS_BY_IDS_PATH" envDefault:"/api/catalog/product/getByIds"`
	BasketDetailPath          string `env:"ORDER_BASKET_DETAIL_PATH" envDefault:"/api/order-management/basket/detail"`
	OrdersPath                string `env:"ORDER_ORDERS_PATH" envDefault:"/api/order-management/order/getAll"`
	CustomerOrdersPath        string `env:"ORDER_CUSTOMER_ORDERS_PATH" envDefault:"/api/order-management/order/customerOrders"`
	ImagesByMasterIDsPath     string `env:"FILE_IMAGES_BY_MASTER_IDS_PATH" envDefault:"/images/getByMasterIds"`

	// Downstream HTTP client
	DownstreamTimeoutSeconds int `env:"DOWNSTREAM_TIMEOUT_SECONDS" envDefault:"30"`
	DownstreamMaxConns       int `env:"DOWNSTREAM_MAX_CONNS" envDefault:"100"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	CORSAllowedMethods []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	CORSAllowedHeaders []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Accept,Authorization,Content-Type,X-Correlation-ID,X-User-ID"`
	CORSMaxAge         int      `env:"CORS_MAX_AGE" envDefault:"3600"`

	// Rate limiting
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"200"`

	// Metrics endpoint protection
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.0/8,10.0.0.0/8,192.168.0.0/16"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Environment != "development" && c.JWTSecret == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	if c.DownstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("DOWNSTREAM_TIMEOUT_SECONDS must be positive, got %d", c.DownstreamTimeoutSeconds)
	}
	return nil
}
