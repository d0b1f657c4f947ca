package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessHandler_AlwaysUp(t *testing.T) {
	h := NewHandler()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()

	h.LivenessHandler()(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadinessHandler_NoChecks_Up(t *testing.T) {
	h := NewHandler()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()

	h.ReadinessHandler()(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadinessHandler_CriticalCheckFails_Returns503(t *testing.T) {
	h := NewHandler()
	h.Register("database", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()

	h.ReadinessHandler()(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["database"].Status)
	assert.Contains(t, resp.Checks["database"].Error, "connection refused")
}

func TestReadinessHandler_NonCriticalCheckFails_StillReady(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("downstream", func(ctx context.Context) error {
		return errors.New("unreachable")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()

	h.ReadinessHandler()(rr, req)

	// Reported in the body but does not flip readiness.
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["downstream"].Status)
}

func TestReadinessHandler_MixedChecks(t *testing.T) {
	h := NewHandler()
	h.Register("critical-ok", func(ctx context.Context) error { return nil })
	h.RegisterNonCritical("optional-down", func(ctx context.Context) error {
		return errors.New("nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()

	h.ReadinessHandler()(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Checks["critical-ok"].Status)
	assert.Equal(t, StatusDown, resp.Checks["optional-down"].Status)
}
