package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/http/handlers"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/http/middleware"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ws"
)

const testSecret = "ops-secret"

func newTestRouter(withAPI bool) http.Handler {
	state := service.NewStationState()
	state.RecordBoot("CP-1", service.BootInfo{Vendor: "Acme", Model: "X1"}, time.Now())
	manager := ws.NewManager(time.Minute, zap.NewNop())

	deps := RouterDeps{
		ChargePoints:  handlers.NewChargePointsHandlers(manager, state, nil, nil, zap.NewNop()),
		HealthHandler: handlers.NewHealthHandler(),
	}
	if !withAPI {
		return NewRouter(deps, nil)
	}
	return NewRouter(deps, middleware.AuthMiddleware(testSecret))
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func serve(router http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(false)

	rec := serve(router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ocpp_sessions_active") {
		t.Fatalf("unexpected metrics response %d", rec.Code)
	}

	rec = serve(router, http.MethodPost, "/health", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAPIRequiresSecret(t *testing.T) {
	router := newTestRouter(false)

	if rec := serve(router, http.MethodGet, "/api/chargepoints", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected API to be unmounted, got %d", rec.Code)
	}
}

func TestAPIChargePoints(t *testing.T) {
	router := newTestRouter(true)

	if rec := serve(router, http.MethodGet, "/api/chargepoints", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec := serve(router, http.MethodGet, "/api/chargepoints", bearer(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var out []handlers.ChargePoint
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != "CP-1" || out[0].Connected || out[0].Station.Vendor != "Acme" {
		t.Fatalf("unexpected charge points %+v", out)
	}

	if rec := serve(router, http.MethodGet, "/api/chargepoints/CP-1", bearer(t)); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/api/chargepoints/CP-1/profile", bearer(t)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without profile store, got %d", rec.Code)
	}
}
