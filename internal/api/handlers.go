package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/goodtune/timewarden/internal/engine"
	"github.com/goodtune/timewarden/internal/storage"
)

// Request type labels echoed back on failure so the UI can match the error to
// the call it made.
const (
	typeGetSettings      = "getSettings"
	typeSaveSettings     = "saveSettings"
	typeGetConfigs       = "getHostnameConfigs"
	typeSaveConfig       = "saveHostnameConfig"
	typeRemoveHostname   = "removeHostname"
	typeGetStatus        = "getStatus"
	typeGetAllStatus     = "getAllStatus"
	typeTogglePause      = "togglePause"
	typeGetDashboard     = "getDashboardData"
	typeGetBlockedStatus = "getBlockedStatus"
	typeRefreshBadge     = "refreshBadge"
)

// failureResponse is the uniform error shape of the API surface.
type failureResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// okResponse acknowledges a mutation with no payload.
type okResponse struct {
	OK bool `json:"ok"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeFailure answers a failed operation with the request-type echo.
func writeFailure(w http.ResponseWriter, statusCode int, requestType string) {
	writeJSON(w, statusCode, failureResponse{Error: "internal", Type: requestType})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.engine.Settings(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get settings")
		writeFailure(w, http.StatusInternalServerError, typeGetSettings)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings storage.GlobalSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeFailure(w, http.StatusBadRequest, typeSaveSettings)
		return
	}
	if err := s.engine.SaveSettings(r.Context(), settings); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save settings")
		writeFailure(w, http.StatusInternalServerError, typeSaveSettings)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleGetConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.engine.Configs(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get configs")
		writeFailure(w, http.StatusInternalServerError, typeGetConfigs)
		return
	}
	if configs == nil {
		configs = []storage.HostnameConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg storage.HostnameConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeFailure(w, http.StatusBadRequest, typeSaveConfig)
		return
	}
	if err := s.engine.SaveConfig(r.Context(), cfg); err != nil {
		s.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Config save rejected")
		writeFailure(w, http.StatusBadRequest, typeSaveConfig)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleRemoveHostname(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["hostname"]
	if err := s.engine.RemoveHostname(r.Context(), host); err != nil {
		s.logger.Error().Err(err).Str("hostname", host).Msg("Failed to remove hostname")
		writeFailure(w, http.StatusInternalServerError, typeRemoveHostname)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["hostname"]
	status, err := s.engine.Status(r.Context(), host)
	if err == engine.ErrUnknownHostname {
		writeFailure(w, http.StatusNotFound, typeGetStatus)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("hostname", host).Msg("Failed to get status")
		writeFailure(w, http.StatusInternalServerError, typeGetStatus)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAllStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.engine.AllStatus(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get all statuses")
		writeFailure(w, http.StatusInternalServerError, typeGetAllStatus)
		return
	}
	if statuses == nil {
		statuses = []engine.Status{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleTogglePause(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["hostname"]
	result, err := s.engine.TogglePause(r.Context(), host)
	if err != nil {
		s.logger.Error().Err(err).Str("hostname", host).Msg("Failed to toggle pause")
		writeFailure(w, http.StatusInternalServerError, typeTogglePause)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.engine.DashboardData(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get dashboard data")
		writeFailure(w, http.StatusInternalServerError, typeGetDashboard)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleBlockedStatus(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["hostname"]
	info, err := s.engine.BlockedStatus(r.Context(), host)
	if err == engine.ErrUnknownHostname {
		writeFailure(w, http.StatusNotFound, typeGetBlockedStatus)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("hostname", host).Msg("Failed to get blocked status")
		writeFailure(w, http.StatusInternalServerError, typeGetBlockedStatus)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBadgeRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RefreshBadge(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to refresh badge")
		writeFailure(w, http.StatusInternalServerError, typeRefreshBadge)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
