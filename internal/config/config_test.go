package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:8001", cfg.CatalogServiceURL)
	assert.Equal(t, "http://localhost:8002", cfg.EngagementServiceURL)
	assert.Equal(t, "http://localhost:8003", cfg.OrderManagementServiceURL)
	assert.Equal(t, "http://localhost:8004", cfg.FileServiceURL)
	assert.Equal(t, "/api/engagement/store/getAll", cfg.EngagementStoresPath)
	assert.Equal(t, "/api/catalog/product/getByStoreId?storeId=", cfg.CatalogProductPath)
	assert.Equal(t, "/images/getByMasterIds", cfg.ImagesByMasterIDsPath)
	assert.Equal(t, 30, cfg.DownstreamTimeoutSeconds)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_HTTP_PORT", "9090")
	t.Setenv("CATALOG_SERVICE_URL", "http://catalog.internal:8080")
	t.Setenv("RATE_LIMIT_RPS", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "http://catalog.internal:8080", cfg.CatalogServiceURL)
	assert.Equal(t, 50, cfg.RateLimitRPS)
}

func TestValidate_DevelopmentWithDefaultSecret_OK(t *testing.T) {
	cfg := &Config{
		Environment:              "development",
		JWTSecret:                "your-secret-key-change-in-production",
		DownstreamTimeoutSeconds: 30,
	}
	err := cfg.validate()
	assert.NoError(t, err, "development environment should accept default JWT secret")
}

func TestValidate_ProductionWithDefaultSecret_Error(t *testing.T) {
	cfg := &Config{
		Environment:              "production",
		JWTSecret:                "your-secret-key-change-in-production",
		DownstreamTimeoutSeconds: 30,
	}
	err := cfg.validate()
	assert.Error(t, err, "production environment should reject default JWT secret")
	assert.Contains(t, err.Error(), "JWT_SECRET must be changed")
	assert.Contains(t, err.Error(), "production")
}

func TestValidate_ProductionWithCustomSecret_OK(t *testing.T) {
	cfg := &Config{
		Environment:              "production",
		JWTSecret:                "my-secure-production-secret-2026",
		DownstreamTimeoutSeconds: 30,
	}
	err := cfg.validate()
	assert.NoError(t, err, "production with custom secret should pass validation")
}

func TestValidate_NonPositiveDownstreamTimeout_Error(t *testing.T) {
	cfg := &Config{
		Environment:              "development",
		JWTSecret:                "your-secret-key-change-in-production",
		DownstreamTimeoutSeconds: 0,
	}
	err := cfg.validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNSTREAM_TIMEOUT_SECONDS")
}
