/*

This file contains the HTTP surface for vault observability and owner
administration: a health endpoint, read-only JSON views of the vault
summary, cycle history and config audit trail, and a POST endpoint for the
owner's configuration changes.

*/

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tbwebb22/gandalf-protocol/internal/logger"
	"github.com/tbwebb22/gandalf-protocol/internal/state"
	"github.com/tbwebb22/gandalf-protocol/internal/types"
	"github.com/tbwebb22/gandalf-protocol/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// VaultService is the slice of the vault the web server needs.
type VaultService interface {
	Summary() (types.VaultSummary, error)
	Config() vault.PoolConfig
	SetFeeNumerator(caller string, numerator uint64) error
	SetSlippageNumerator(caller string, numerator uint64) error
	SetDesiredTickRange(caller string, width int64) error
}

// WebServer handles HTTP requests for vault data and administration
type WebServer struct {
	router  *mux.Router
	port    string
	vault   VaultService
	persist bool
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, vaultService VaultService, persist bool) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		vault:   vaultService,
		persist: persist,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/vault/config", ws.handleGetConfig).Methods("GET")
	api.HandleFunc("/vault/config", ws.handleUpdateConfig).Methods("POST")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/config-changes", ws.handleGetConfigChanges).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "OK"

	vaultHealthy := true
	if _, err := ws.vault.Summary(); err != nil {
		vaultHealthy = false
		status = "DEGRADED"
	}

	dbHealthy := true
	if ws.persist {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			status = "DEGRADED"
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":           status,
		"vault_healthy":    vaultHealthy,
		"database_healthy": dbHealthy,
		"persistence":      ws.persist,
		"timestamp":        time.Now().UTC(),
	})
}

func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.vault.Summary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to read vault summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read vault summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.vault.Config())
}

// configUpdateRequest is the POST /api/vault/config body.
type configUpdateRequest struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Caller string `json:"caller"`
}

// handleUpdateConfig applies one owner configuration change and records it
// in the audit trail.
func (ws *WebServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	oldCfg := ws.vault.Config()
	var oldValue string
	var err error

	switch req.Field {
	case "protocol_fee_numerator":
		oldValue = strconv.FormatUint(oldCfg.ProtocolFeeNumerator, 10)
		var numerator uint64
		numerator, err = strconv.ParseUint(req.Value, 10, 64)
		if err == nil {
			err = ws.vault.SetFeeNumerator(req.Caller, numerator)
		}
	case "slippage_numerator":
		oldValue = strconv.FormatUint(oldCfg.SlippageNumerator, 10)
		var numerator uint64
		numerator, err = strconv.ParseUint(req.Value, 10, 64)
		if err == nil {
			err = ws.vault.SetSlippageNumerator(req.Caller, numerator)
		}
	case "desired_tick_range":
		oldValue = strconv.FormatInt(oldCfg.DesiredTickRange, 10)
		var width int64
		width, err = strconv.ParseInt(req.Value, 10, 64)
		if err == nil {
			err = ws.vault.SetDesiredTickRange(req.Caller, width)
		}
	default:
		ws.writeErrorResponse(w, http.StatusBadRequest, "Unknown config field: "+req.Field)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, vault.ErrUnauthorized):
			ws.writeErrorResponse(w, http.StatusForbidden, err.Error())
		case errors.Is(err, vault.ErrInvalidInput):
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		default:
			webLogger.Error().Err(err).Str("field", req.Field).Msg("Config update failed")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Config update failed")
		}
		return
	}

	if ws.persist {
		change := types.ConfigChange{
			Timestamp: time.Now().UTC(),
			Field:     req.Field,
			OldValue:  oldValue,
			NewValue:  req.Value,
			ChangedBy: req.Caller,
		}
		if _, err := state.SaveConfigChange(change); err != nil {
			webLogger.Error().Err(err).Msg("Failed to record config change")
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.vault.Config())
}

func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	if !ws.persist {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to query snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to query snapshots")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func (ws *WebServer) handleGetConfigChanges(w http.ResponseWriter, r *http.Request) {
	if !ws.persist {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	changes, err := state.GetConfigChanges(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to query config changes")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to query config changes")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"changes": changes,
		"count":   len(changes),
	})
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the response writer to capture the status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
