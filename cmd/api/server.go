package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"safeguard/internal/monitor"
)

// orchestrator is the slice of the monitor the HTTP edge consumes.
type orchestrator interface {
	Snapshot() monitor.Snapshot
	Subscribe(ctx context.Context) <-chan monitor.Snapshot
	History() []monitor.IncidentRecord
	AnalyzeNow()
	TriggerManual()
	Reset()
	SetContact(number string) error
	SetSender(number string) error
	SetMode(mode string) error
}

// apiServer wires the operator endpoints over the orchestrator.
type apiServer struct {
	mon orchestrator
}

func newAPIServer(mon orchestrator) *apiServer {
	return &apiServer{mon: mon}
}

func buildMux(s *apiServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/incidents", s.handleIncidents)
	mux.HandleFunc("/api/contact", s.handleSetContact)
	mux.HandleFunc("/api/sender", s.handleSetSender)
	mux.HandleFunc("/api/mode", s.handleSetMode)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/emergency", s.handleEmergency)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/ws", s.handleStatusWS)
	return mux
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.mon.Snapshot())
}

func (s *apiServer) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{"incidents": s.mon.History()})
}

func (s *apiServer) handleSetContact(w http.ResponseWriter, r *http.Request) {
	s.handleSetNumber(w, r, s.mon.SetContact)
}

func (s *apiServer) handleSetSender(w http.ResponseWriter, r *http.Request) {
	s.handleSetNumber(w, r, s.mon.SetSender)
}

func (s *apiServer) handleSetNumber(w http.ResponseWriter, r *http.Request, set func(string) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Number string `json:"number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	number := strings.TrimSpace(in.Number)
	if number == "" {
		http.Error(w, "number is required", http.StatusBadRequest)
		return
	}
	if err := set(number); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *apiServer) handleSetMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := s.mon.SetMode(in.Mode); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mon.AnalyzeNow()
	writeJSON(w, map[string]any{"ok": true})
}

func (s *apiServer) handleEmergency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mon.TriggerManual()
	writeJSON(w, map[string]any{"ok": true})
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mon.Reset()
	writeJSON(w, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
