package routes

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"device-strategy-service/httputil"
	edge_log "device-strategy-service/log"
	"device-strategy-service/metrics"
	"device-strategy-service/storage"
	"device-strategy-service/tracing"

	"go.uber.org/zap"

	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	trace_log "github.com/opentracing/opentracing-go/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminTokenHeader carries the static shared secret for admin requests
const AdminTokenHeader = "X-Admin-Token"

// StrategyEndpoint specifies the interfaces for the device strategy service
type StrategyEndpoint struct {
	StrategyStore storage.StrategyStore
	AdminToken    string
	Logger        *zap.Logger
}

// AdminResult is the success body of the admin set-password route
type AdminResult struct {
	OK         bool   `json:"ok"`
	DeviceID   string `json:"device_id"`
	ModifiedAt int64  `json:"modified_at"`
}

// AdminError is the failure body of the admin set-password route
type AdminError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// HeartbeatError is the failure body of the heartbeat route
type HeartbeatError struct {
	Error string `json:"error"`
}

var emptyObject = map[string]interface{}{}

// decodeBody parses a request body into a dynamic JSON value. An empty body
// decodes as null. When the direct parse fails, the body is re-tried as a
// JSON-encoded string whose contents are themselves JSON (some production
// clients double-encode their heartbeat payload); if that secondary parse
// fails too, the original parse error is returned.
func decodeBody(raw []byte) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var value interface{}
	err := json.Unmarshal(raw, &value)
	if err == nil {
		return value, nil
	}

	var inner string
	if json.Unmarshal(raw, &inner) == nil {
		var innerValue interface{}
		if json.Unmarshal([]byte(inner), &innerValue) == nil {
			return innerValue, nil
		}
	}

	return nil, err
}

// coerceModifiedAt turns a dynamic JSON field into a version stamp. Numbers
// truncate, integer strings parse, everything else falls back to zero.
func coerceModifiedAt(value interface{}) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case string:
		stamp, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return stamp
	default:
		return 0
	}
}

// Attach function provides the rules of routes for the StrategyEndpoint
func (strategyEndpoint *StrategyEndpoint) Attach(router *mux.Router) {
	router.HandleFunc("/api/heartbeat", tracing.InstrumentHandler("device heartbeat", func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(metrics.PrometheusHeartbeatRequestDurations)
		defer timer.ObserveDuration()

		requestID := httputil.RequestIDFromContext(r.Context())

		logger := edge_log.WithContext(r.Context(), strategyEndpoint.Logger).With(zap.String("request_id", requestID)).With(zap.String("sub-component", "heartbeat-handler"))

		span := opentracing.SpanFromContext(r.Context())
		span.SetTag("request_id", requestID)

		raw, err := ioutil.ReadAll(r.Body)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, HeartbeatError{Error: "invalid json"})

			logger.Warn("Could not read request body.", zap.Error(err), zap.Int("response_code", http.StatusBadRequest))

			span.LogFields(
				trace_log.String("event", "error"),
				trace_log.String("message", "could not read request body"),
				trace_log.Error(err),
			)

			metrics.PrometheusHeartbeatRequestErrorCounter.Inc()

			return
		}

		body, err := decodeBody(raw)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, HeartbeatError{Error: "invalid json"})

			logger.Warn("Could not decode request body.", zap.Error(err), zap.Int("response_code", http.StatusBadRequest))

			span.LogFields(
				trace_log.String("event", "error"),
				trace_log.String("message", "could not decode request body"),
				trace_log.Error(err),
			)

			metrics.PrometheusHeartbeatRequestErrorCounter.Inc()

			return
		}

		// A heartbeat that is not a JSON object is answered with an empty
		// object rather than an error so that minimal or malformed polls
		// never break the client's polling loop.
		fields, ok := body.(map[string]interface{})
		if !ok {
			httputil.WriteJSON(w, http.StatusOK, emptyObject)

			logger.Debug("Heartbeat body is not an object, nothing to report.", zap.Int("response_code", http.StatusOK))

			return
		}

		deviceID, _ := fields["id"].(string)
		clientModifiedAt := coerceModifiedAt(fields["modified_at"])

		if deviceID == "" {
			httputil.WriteJSON(w, http.StatusOK, emptyObject)

			logger.Debug("Heartbeat without a device id, nothing to report.", zap.Int("response_code", http.StatusOK))

			return
		}

		span.SetTag("device_id", deviceID)

		update := strategyEndpoint.StrategyStore.GetStrategyIfModified(deviceID, clientModifiedAt)
		if update == nil {
			httputil.WriteJSON(w, http.StatusOK, emptyObject)

			logger.Debug("Device strategy unchanged.", zap.String("device_id", deviceID), zap.Int64("client_modified_at", clientModifiedAt), zap.Int("response_code", http.StatusOK))

			return
		}

		metrics.PrometheusStrategyUpdateIndicator.Inc()

		httputil.WriteJSON(w, http.StatusOK, update)

		logger.Info("Pushed strategy update.", zap.String("device_id", deviceID), zap.Int64("modified_at", update.ModifiedAt), zap.Int("response_code", http.StatusOK))

		span.LogFields(
			trace_log.String("event", "strategy update"),
			trace_log.String("message", "pushed full strategy payload to device"),
		)
	})).Methods("POST")

	router.HandleFunc("/api/admin/devices/{device_id}/permanent-password", tracing.InstrumentHandler("admin set password", func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(metrics.PrometheusAdminRequestDurations)
		defer timer.ObserveDuration()

		requestID := httputil.RequestIDFromContext(r.Context())
		deviceID := mux.Vars(r)["device_id"]

		logger := edge_log.WithContext(r.Context(), strategyEndpoint.Logger).With(zap.String("request_id", requestID)).With(zap.String("device_id", deviceID)).With(zap.String("sub-component", "admin-set-password-handler"))

		span := opentracing.SpanFromContext(r.Context())
		span.SetTag("request_id", requestID)
		span.SetTag("device_id", deviceID)

		// The token check runs before the body is touched.
		token := r.Header.Get(AdminTokenHeader)
		if token == "" || token != strategyEndpoint.AdminToken {
			httputil.WriteJSON(w, http.StatusUnauthorized, AdminError{Error: "unauthorized"})

			logger.Warn("Rejected admin request with missing or wrong token.", zap.Int("response_code", http.StatusUnauthorized))

			span.LogFields(
				trace_log.String("event", "error"),
				trace_log.String("message", "admin token missing or mismatched"),
			)

			metrics.PrometheusAdminRequestErrorCounter.Inc()

			return
		}

		var body interface{}
		raw, err := ioutil.ReadAll(r.Body)
		if err == nil {
			body, err = decodeBody(raw)
		}

		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, AdminError{Error: "invalid json"})

			logger.Warn("Could not decode admin request body.", zap.Error(err), zap.Int("response_code", http.StatusBadRequest))

			span.LogFields(
				trace_log.String("event", "error"),
				trace_log.String("message", "could not decode request body"),
				trace_log.Error(err),
			)

			metrics.PrometheusAdminRequestErrorCounter.Inc()

			return
		}

		fields, ok := body.(map[string]interface{})
		if !ok {
			httputil.WriteJSON(w, http.StatusBadRequest, AdminError{Error: "json object required"})

			logger.Warn("Admin request body is not a JSON object.", zap.Int("response_code", http.StatusBadRequest))

			span.LogFields(
				trace_log.String("event", "error"),
				trace_log.String("message", "request body is not a json object"),
			)

			metrics.PrometheusAdminRequestErrorCounter.Inc()

			return
		}

		newPassword, _ := fields["new_password"].(string)
		if newPassword == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, AdminError{Error: "new_password required"})

			logger.Warn("Admin request without a usable new_password.", zap.Int("response_code", http.StatusBadRequest))

			span.LogFields(
				trace_log.String("event", "error"),
				trace_log.String("message", "new_password missing, empty or not a string"),
			)

			metrics.PrometheusAdminRequestErrorCounter.Inc()

			return
		}

		modifiedAt := strategyEndpoint.StrategyStore.SetPassword(deviceID, newPassword)

		metrics.PrometheusPasswordWriteIndicator.Inc()

		httputil.WriteJSON(w, http.StatusOK, AdminResult{OK: true, DeviceID: deviceID, ModifiedAt: modifiedAt})

		logger.Info("Stored new permanent password.", zap.Int64("modified_at", modifiedAt), zap.Int("response_code", http.StatusOK))

		span.LogFields(
			trace_log.String("event", "password stored"),
			trace_log.String("message", "stored new permanent password for device"),
		)
	})).Methods("POST")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteText(w, http.StatusOK, "ok")
	}).Methods("GET")

	router.HandleFunc("/liveness", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, emptyObject)
	}).Methods("GET")

	router.HandleFunc("/readiness", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, emptyObject)
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteText(w, http.StatusNotFound, "not found")
	})

	// Unknown paths and wrong methods both answer 404, there is no 405 in
	// this protocol.
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = notFound
}
