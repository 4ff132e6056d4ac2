package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/session"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// Reloader reloads permission policies on demand.
type Reloader interface {
	Reload() error
}

// API serves the operator HTTP endpoints.
type API struct {
	manager *session.Manager
	history *History
	policy  Reloader
	logger  zerolog.Logger
}

// NewAPI creates the API handler set.
func NewAPI(manager *session.Manager, history *History, policy Reloader, logger zerolog.Logger) *API {
	return &API{
		manager: manager,
		history: history,
		policy:  policy,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the mux router for the API.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	router.HandleFunc("/api/sessions", a.listSessions).Methods("GET")
	router.HandleFunc("/api/sessions/{owner}", a.getSession).Methods("GET")
	router.HandleFunc("/api/sessions/{owner}", a.endSession).Methods("DELETE")
	router.HandleFunc("/api/history/recent", a.recentHistory).Methods("GET")
	router.HandleFunc("/api/history/{owner}", a.ownerHistory).Methods("GET")
	router.HandleFunc("/api/policies/reload", a.reloadPolicies).Methods("POST")
	return router
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listSessions returns all active training sessions.
func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.manager.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// getSession returns a player's active session.
func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	snap, ok := a.manager.Get(owner)
	if !ok {
		writeError(w, http.StatusNotFound, "No active session for player")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// endSession force-ends a player's active session.
func (a *API) endSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	if !a.manager.ForceEnd(owner) {
		writeError(w, http.StatusNotFound, "No active session for player")
		return
	}

	a.logger.Info().Str("owner", owner.String()).Msg("Session force-ended via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// recentHistory returns recently completed sessions from the cache.
func (a *API) recentHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	records := a.history.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// ownerHistory returns a player's completed sessions from the log.
func (a *API) ownerHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	records, err := a.history.ByOwner(r.Context(), owner.String(), queryLimit(r, 20))
	if err != nil {
		a.logger.Error().Err(err).Str("owner", owner.String()).Msg("Failed to read session history")
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// reloadPolicies reloads permission policies from disk.
func (a *API) reloadPolicies(w http.ResponseWriter, r *http.Request) {
	if a.policy == nil {
		writeError(w, http.StatusNotImplemented, "No policy engine configured")
		return
	}
	if err := a.policy.Reload(); err != nil {
		a.logger.Error().Err(err).Msg("Policy reload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func ownerVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, err := uuid.Parse(mux.Vars(r)["owner"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid player ID")
		return uuid.Nil, false
	}
	return owner, true
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return def
	}
	return limit
}
