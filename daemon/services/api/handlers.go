package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/services/archive"
	"github.com/ruaan-deysel/eventwatch/daemon/services/engine"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListAnalyzers implements listAnalyzers().
func (s *Server) handleListAnalyzers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListAnalyzers())
}

// handleEngineMessages implements engineMessages().
func (s *Server) handleEngineMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.EngineMessages())
}

// handleRecentAlarms serves the supplemented alarm history endpoint.
func (s *Server) handleRecentAlarms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alarms.Recent(0))
}

// handleReloadRules implements reloadRules(programName).
func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	programName := mux.Vars(r)["program"]
	s.engine.ReloadRules(programName)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "program": programName})
}

// handleIngest accepts a single SystemEvent from an external producer,
// archives it, and hands it to the engine for rule evaluation.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var event dto.SystemEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload: "+err.Error())
		return
	}

	if s.archive != nil {
		s.archive.Append(event)
	}

	if err := s.engine.Enqueue(event); err != nil {
		if err == engine.ErrEngineNotRunning {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleGetEvent serves the archive document view:
// GET /api/v1/events/{partition}/{row}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := archive.ParseEventID(vars["partition"] + ":" + vars["row"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := s.archive.GetEvent(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, event)
}
