package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"safeguard/internal/config"
	"safeguard/internal/monitor"
)

type stubOrchestrator struct {
	mu       sync.Mutex
	snap     monitor.Snapshot
	history  []monitor.IncidentRecord
	analyzed int
	manual   int
	resets   int
	contact  string
	sender   string
	mode     string
}

func (s *stubOrchestrator) Snapshot() monitor.Snapshot { return s.snap }
func (s *stubOrchestrator) Subscribe(ctx context.Context) <-chan monitor.Snapshot {
	ch := make(chan monitor.Snapshot, 1)
	ch <- s.snap
	return ch
}
func (s *stubOrchestrator) History() []monitor.IncidentRecord { return s.history }
func (s *stubOrchestrator) AnalyzeNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzed++
}
func (s *stubOrchestrator) TriggerManual() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual++
}
func (s *stubOrchestrator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}
func (s *stubOrchestrator) SetContact(number string) error {
	if !config.ValidNumber(number) {
		return errInvalidNumber
	}
	s.contact = number
	return nil
}
func (s *stubOrchestrator) SetSender(number string) error {
	if !config.ValidNumber(number) {
		return errInvalidNumber
	}
	s.sender = number
	return nil
}
func (s *stubOrchestrator) SetMode(mode string) error {
	if _, ok := config.ParseMode(mode); !ok {
		return errInvalidNumber
	}
	s.mode = mode
	return nil
}

var errInvalidNumber = errors.New("invalid number")

func TestStatusEndpoint(t *testing.T) {
	stub := &stubOrchestrator{snap: monitor.Snapshot{State: monitor.StateIdle, Generation: 1}}
	mux := buildMux(newAPIServer(stub))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, monitor.StateIdle, snap.State)
}

func TestCommandEndpoints(t *testing.T) {
	stub := &stubOrchestrator{}
	mux := buildMux(newAPIServer(stub))

	for _, path := range []string{"/api/analyze", "/api/emergency", "/api/reset"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
	require.Equal(t, 1, stub.analyzed)
	require.Equal(t, 1, stub.manual)
	require.Equal(t, 1, stub.resets)
}

func TestSetContactValidation(t *testing.T) {
	stub := &stubOrchestrator{}
	mux := buildMux(newAPIServer(stub))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"number":"+15551234567"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "+15551234567", stub.contact)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"number":"bogus"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetModeEndpoint(t *testing.T) {
	stub := &stubOrchestrator{}
	mux := buildMux(newAPIServer(stub))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mode",
		strings.NewReader(`{"mode":"periodic"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "periodic", stub.mode)
}

func TestIncidentsEndpoint(t *testing.T) {
	stub := &stubOrchestrator{history: []monitor.IncidentRecord{{ID: "inc-1", Reason: "smoke"}}}
	mux := buildMux(newAPIServer(stub))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "inc-1")
}
