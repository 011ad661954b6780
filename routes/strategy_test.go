package routes_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"device-strategy-service/routes"
	"device-strategy-service/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const testAdminToken = "devtoken"

// StrategyEndpointTestSuite exercises the HTTP surface end to end against a
// fresh in-memory store per test.
type StrategyEndpointTestSuite struct {
	suite.Suite
	store  *storage.MemoryStrategyStore
	router *mux.Router
}

func (s *StrategyEndpointTestSuite) SetupTest() {
	s.store = storage.NewMemoryStrategyStore(zap.NewNop())
	s.router = mux.NewRouter()

	endpoint := routes.StrategyEndpoint{
		StrategyStore: s.store,
		AdminToken:    testAdminToken,
		Logger:        zap.NewNop(),
	}
	endpoint.Attach(s.router)
}

func (s *StrategyEndpointTestSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)

	return recorder
}

func (s *StrategyEndpointTestSuite) heartbeat(body string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/api/heartbeat", body, nil)
}

func (s *StrategyEndpointTestSuite) setPassword(deviceID, body, token string) *httptest.ResponseRecorder {
	headers := map[string]string{}
	if token != "" {
		headers[routes.AdminTokenHeader] = token
	}

	return s.do(http.MethodPost, "/api/admin/devices/"+deviceID+"/permanent-password", body, headers)
}

func (s *StrategyEndpointTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", rec.Body.String())
	s.Equal("text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func (s *StrategyEndpointTestSuite) TestUnmatchedRoutes() {
	rec := s.do(http.MethodGet, "/nope", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not found", rec.Body.String())

	// Wrong method on a known path is a 404 too, not a 405.
	rec = s.do(http.MethodGet, "/api/heartbeat", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not found", rec.Body.String())

	rec = s.do(http.MethodPost, "/health", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *StrategyEndpointTestSuite) TestHeartbeatUnknownDevice() {
	rec := s.heartbeat(`{"id": "ghost", "modified_at": 0}`)

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{}`, rec.Body.String())
	s.Equal("application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func (s *StrategyEndpointTestSuite) TestSetPasswordThenPoll() {
	rec := s.setPassword("dev1", `{"new_password": "secret123"}`, testAdminToken)
	s.Require().Equal(http.StatusOK, rec.Code)

	var result routes.AdminResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.True(result.OK)
	s.Equal("dev1", result.DeviceID)
	s.Greater(result.ModifiedAt, int64(0))

	// A device with a stale stamp gets the full strategy payload.
	rec = s.heartbeat(`{"id": "dev1", "modified_at": 0}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(fmt.Sprintf(`{
		"modified_at": %d,
		"strategy": {
			"config_options": {"permanent-password": "secret123"},
			"extra": {}
		}
	}`, result.ModifiedAt), rec.Body.String())

	// Polling again with the returned stamp reports no change.
	rec = s.heartbeat(fmt.Sprintf(`{"id": "dev1", "modified_at": %d}`, result.ModifiedAt))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{}`, rec.Body.String())
}

func (s *StrategyEndpointTestSuite) TestHeartbeatNonObjectBodies() {
	for _, body := range []string{``, `null`, `[1, 2, 3]`, `"just a string"`, `42`, `true`} {
		rec := s.heartbeat(body)

		s.Equal(http.StatusOK, rec.Code, "body %q", body)
		s.JSONEq(`{}`, rec.Body.String(), "body %q", body)
	}
}

func (s *StrategyEndpointTestSuite) TestHeartbeatInvalidJSON() {
	rec := s.heartbeat(`{"id": "dev1"`)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"error": "invalid json"}`, rec.Body.String())
}

func (s *StrategyEndpointTestSuite) TestHeartbeatEmptyDeviceID() {
	s.store.SetPassword("dev1", "secret123")

	rec := s.heartbeat(`{"id": "", "modified_at": 0}`)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{}`, rec.Body.String())

	rec = s.heartbeat(`{"modified_at": 0}`)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{}`, rec.Body.String())
}

func (s *StrategyEndpointTestSuite) TestHeartbeatModifiedAtCoercion() {
	stamp := s.store.SetPassword("dev1", "secret123")

	// A stamp sent as an integer string still counts as up to date.
	rec := s.heartbeat(fmt.Sprintf(`{"id": "dev1", "modified_at": "%d"}`, stamp))
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{}`, rec.Body.String())

	// Anything non-coercible falls back to zero and pulls the payload.
	rec = s.heartbeat(`{"id": "dev1", "modified_at": "garbage"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "permanent-password")

	rec = s.heartbeat(`{"id": "dev1", "modified_at": null}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "permanent-password")
}

func (s *StrategyEndpointTestSuite) TestAdminUnauthorized() {
	rec := s.setPassword("dev1", `{"new_password": "secret123"}`, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.JSONEq(`{"ok": false, "error": "unauthorized"}`, rec.Body.String())

	rec = s.setPassword("dev1", `{"new_password": "secret123"}`, "wrong")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.JSONEq(`{"ok": false, "error": "unauthorized"}`, rec.Body.String())

	// The token check fires before the body is even looked at.
	rec = s.setPassword("dev1", `{invalid`, "wrong")
	s.Equal(http.StatusUnauthorized, rec.Code)

	s.Nil(s.store.GetStrategyIfModified("dev1", 0))
}

func (s *StrategyEndpointTestSuite) TestAdminBadBodies() {
	rec := s.setPassword("dev1", `{invalid`, testAdminToken)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"ok": false, "error": "invalid json"}`, rec.Body.String())

	for _, body := range []string{``, `null`, `[1]`, `"str"`, `7`} {
		rec = s.setPassword("dev1", body, testAdminToken)
		s.Equal(http.StatusBadRequest, rec.Code, "body %q", body)
		s.JSONEq(`{"ok": false, "error": "json object required"}`, rec.Body.String(), "body %q", body)
	}

	for _, body := range []string{`{}`, `{"new_password": ""}`, `{"new_password": 123}`, `{"new_password": null}`} {
		rec = s.setPassword("dev1", body, testAdminToken)
		s.Equal(http.StatusBadRequest, rec.Code, "body %q", body)
		s.JSONEq(`{"ok": false, "error": "new_password required"}`, rec.Body.String(), "body %q", body)
	}

	s.Nil(s.store.GetStrategyIfModified("dev1", 0))
}

func (s *StrategyEndpointTestSuite) TestAdminOverwrite() {
	first := s.setPassword("dev1", `{"new_password": "old"}`, testAdminToken)
	s.Require().Equal(http.StatusOK, first.Code)

	second := s.setPassword("dev1", `{"new_password": "new"}`, testAdminToken)
	s.Require().Equal(http.StatusOK, second.Code)

	update := s.store.GetStrategyIfModified("dev1", 0)
	s.Require().NotNil(update)
	s.Equal("new", update.Strategy.ConfigOptions[storage.PermanentPasswordKey])
}

func (s *StrategyEndpointTestSuite) TestProbesAndMetrics() {
	rec := s.do(http.MethodGet, "/liveness", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/readiness", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func TestStrategyEndpointTestSuite(t *testing.T) {
	suite.Run(t, new(StrategyEndpointTestSuite))
}
