package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messaging "ygbackend/contexts/communications/messaging-service"
	notification "ygbackend/contexts/communications/notification-service"
	media "ygbackend/contexts/content/media-service"
	payout "ygbackend/contexts/finance-core/payout-service"
	royalty "ygbackend/contexts/finance-core/royalty-service"
	jobmonitor "ygbackend/contexts/internal-ops/job-monitor-service"
	ipasset "ygbackend/contexts/rights-management/ip-asset-service"
	license "ygbackend/contexts/rights-management/license-service"
	"ygbackend/internal/platform/auth"
	"ygbackend/internal/platform/ratelimit"
	"ygbackend/internal/shared/outbox"
)

var testTokens = auth.Tokens{Secret: []byte("test-secret"), Issuer: "ygbackend-test"}

func newTestServer(t *testing.T, limiter *ratelimit.FixedWindowLimiter) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := outbox.NewMemoryStore()
	modules := Modules{
		IPAsset:      ipasset.NewInMemoryModule(events, logger),
		License:      license.NewInMemoryModule(events, logger),
		Media:        media.NewInMemoryModule(events, "media-secret", "http://localhost/media", logger),
		Messaging:    messaging.NewInMemoryModule(events, nil, logger),
		Notification: notification.NewInMemoryModule(nil, nil, nil, logger),
		Royalty:      royalty.NewInMemoryModule(events, nil, nil, 1000, logger),
		Payout:       payout.NewInMemoryModule(nil, "whsec_test", events, nil, nil, 1000, logger),
		JobMonitor:   jobmonitor.NewInMemoryModule(events, logger),
	}
	return New(modules, Options{
		Tokens:       testTokens,
		Limiter:      limiter,
		AdminUserIDs: []string{"ops-1"},
		Logger:       logger,
	})
}

func bearer(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := testTokens.Sign(auth.Principal{UserID: userID, Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, srv *Server, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealthzIsPublic(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestContextRoutesRequireBearerToken(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/v1/ip-assets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)

	rec = do(t, srv, http.MethodGet, "/v1/ip-assets", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAssetReplaysIdempotencyKey(t *testing.T) {
	srv := newTestServer(t, nil)
	headers := map[string]string{
		"Authorization":   bearer(t, "creator-1", auth.RoleCreator),
		"Idempotency-Key": "asset-create-1",
	}
	body := map[string]any{"title": "Sunset Pack", "type": "image", "tags": []string{"sunset"}}

	first := do(t, srv, http.MethodPost, "/v1/ip-assets", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var created struct {
		Data struct {
			AssetID   string `json:"asset_id"`
			CreatedBy string `json:"created_by"`
		} `json:"data"`
		Replayed bool `json:"replayed"`
	}
	require.NoError(t, json.NewDecoder(first.Body).Decode(&created))
	assert.NotEmpty(t, created.Data.AssetID)
	assert.Equal(t, "creator-1", created.Data.CreatedBy)
	assert.False(t, created.Replayed)

	second := do(t, srv, http.MethodPost, "/v1/ip-assets", body, headers)
	require.Equal(t, http.StatusOK, second.Code)
	var replayed struct {
		Data struct {
			AssetID string `json:"asset_id"`
		} `json:"data"`
		Replayed bool `json:"replayed"`
	}
	require.NoError(t, json.NewDecoder(second.Body).Decode(&replayed))
	assert.Equal(t, created.Data.AssetID, replayed.Data.AssetID)
	assert.True(t, replayed.Replayed)

	get := do(t, srv, http.MethodGet, "/v1/ip-assets/"+created.Data.AssetID, nil, headers)
	assert.Equal(t, http.StatusOK, get.Code)
}

func TestInvalidJSONIsRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/ip-assets", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", bearer(t, "creator-1", auth.RoleCreator))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeError(t, rec).Code)
}

func TestAdminJobRoutesRequireAdminRole(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/v1/admin/jobs/queues", nil, map[string]string{
		"Authorization": bearer(t, "creator-1", auth.RoleCreator),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Code)

	rec = do(t, srv, http.MethodGet, "/v1/admin/jobs/queues", nil, map[string]string{
		"Authorization": bearer(t, "admin-1", auth.RoleAdmin),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUserIDsArePromoted(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/v1/admin/jobs/queues", nil, map[string]string{
		"Authorization": bearer(t, "ops-1", auth.RoleCreator),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	srv := newTestServer(t, ratelimit.New(2, time.Minute))
	headers := map[string]string{"Authorization": bearer(t, "creator-1", auth.RoleCreator)}

	first := do(t, srv, http.MethodGet, "/v1/ip-assets", nil, headers)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

	do(t, srv, http.MethodGet, "/v1/ip-assets", nil, headers)
	third := do(t, srv, http.MethodGet, "/v1/ip-assets", nil, headers)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, third.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, third).Code)

	other := do(t, srv, http.MethodGet, "/v1/ip-assets", nil, map[string]string{
		"Authorization": bearer(t, "creator-2", auth.RoleCreator),
	})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/v1/payouts/webhooks/stripe", map[string]any{
		"id":   "evt_1",
		"type": "account.updated",
	}, map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, rec).Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}
