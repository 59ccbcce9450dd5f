package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lumefi/bridgepool/internal/logger"
	"github.com/lumefi/bridgepool/internal/pool"
	"github.com/lumefi/bridgepool/internal/query"
	"github.com/lumefi/bridgepool/internal/state"
	"github.com/lumefi/bridgepool/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for pool and withdrawal data
type WebServer struct {
	router      *mux.Router
	port        string
	near        *pool.NearPool
	far         *pool.FarPool
	withdrawals *query.WithdrawalSummaryQuery

	// journal gates the snapshot endpoints on database availability.
	journal bool
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, near *pool.NearPool, far *pool.FarPool, withdrawals *query.WithdrawalSummaryQuery, journal bool) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:      mux.NewRouter(),
		port:        port,
		near:        near,
		far:         far,
		withdrawals: withdrawals,
		journal:     journal,
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
	api.HandleFunc("/pool/summary", ws.handleGetPoolSummary).Methods("GET")
	api.HandleFunc("/vaults", ws.handleGetVaults).Methods("GET")
	api.HandleFunc("/vaults/{batchID}", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/withdrawals/{address}", ws.handleGetWithdrawals).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/snapshots/latest", ws.handleGetLatestSnapshot).Methods("GET")

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
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if ws.journal {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "bridgepool-keeper",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"journal_enabled":  ws.journal,
			"pending_deposits": ws.near.ToDeposit().String(),
			"open_vaults":      len(ws.near.Vaults()),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPoolSummary returns aggregate state of the pool pair
func (ws *WebServer) handleGetPoolSummary(w http.ResponseWriter, r *http.Request) {
	pendingDeposits := ws.near.ToDeposit()
	farValue := ws.far.TotalValue()

	pendingDisplay, err := types.AmountToDisplay(pendingDeposits)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to convert pending deposits for display")
	}
	farValueDisplay, err := types.AmountToDisplay(farValue)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to convert far pool value for display")
	}

	response := map[string]interface{}{
		"pending_deposits":         pendingDeposits.String(),
		"pending_deposits_display": pendingDisplay,
		"near_total_shares":        ws.near.TotalShares().String(),
		"far_total_shares":         ws.far.TotalShares().String(),
		"far_total_value":          farValue.String(),
		"far_total_value_display":  farValueDisplay,
		"pool_token_value":         ws.far.PoolTokenValue().String(),
		"timestamp":                time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVaults returns the full withdrawal vault ledger
func (ws *WebServer) handleGetVaults(w http.ResponseWriter, r *http.Request) {
	vaults := ws.near.Vaults()

	response := map[string]interface{}{
		"vaults": vaults,
		"count":  len(vaults),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVault returns a specific withdrawal vault by batch id
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["batchID"]

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	vault, err := ws.near.WithdrawalVault(types.BatchID(id))
	if err != nil {
		webLogger.Error().Err(err).Uint64("batchId", id).Msg("Failed to get withdrawal vault")
		ws.writeErrorResponse(w, http.StatusNotFound, "Vault not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, vault)
}

// handleGetWithdrawals returns a holder's withdrawal summaries
func (ws *WebServer) handleGetWithdrawals(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := types.Address(vars["address"])

	summaries, err := ws.withdrawals.Summaries(address)
	if err != nil {
		webLogger.Error().Err(err).Str("address", address.String()).Msg("Failed to get withdrawal summaries")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve withdrawals")
		return
	}

	response := map[string]interface{}{
		"address":     address,
		"withdrawals": summaries,
		"count":       len(summaries),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshots returns paginated epoch snapshot data
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	if !ws.journal {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Snapshot journal is disabled")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestSnapshot returns the most recent epoch snapshot
func (ws *WebServer) handleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if !ws.journal {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Snapshot journal is disabled")
		return
	}

	snapshots, err := state.GetRecentSnapshots(1)
	if err != nil || len(snapshots) == 0 {
		webLogger.Error().Err(err).Msg("Failed to get latest snapshot")
		ws.writeErrorResponse(w, http.StatusNotFound, "No snapshots found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshots[0])
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
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

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
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
