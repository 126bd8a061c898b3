package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/orchestrator"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
	"github.com/AaronLay10/NarrativeEngine/internal/version"
)

// Server exposes one story runtime over HTTP.
type Server struct {
	runtime *orchestrator.Runtime
	saves   storage.SaveStore
	auth    *Auth
	metrics *Metrics
	log     *zap.Logger

	mux   *http.ServeMux
	ready readiness
}

type readiness struct {
	mu                sync.RWMutex
	mqttConnected     bool
	mqttOptional      bool
	storageConnected  bool
	storageConfigured bool
}

// Option configures a Server.
type Option func(*Server)

// WithSaveStore enables the save endpoints.
func WithSaveStore(s storage.SaveStore) Option {
	return func(srv *Server) { srv.saves = s }
}

func WithAuth(a *Auth) Option {
	return func(srv *Server) { srv.auth = a }
}

// WithMetrics serves m on /metrics.
func WithMetrics(m *Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(srv *Server) { srv.log = l }
}

// WithMQTTRequired makes /ready fail while the broker is disconnected.
func WithMQTTRequired() Option {
	return func(srv *Server) { srv.ready.mqttOptional = false }
}

func New(rt *orchestrator.Runtime, opts ...Option) *Server {
	s := &Server{
		runtime: rt,
		log:     zap.NewNop(),
		mux:     http.NewServeMux(),
	}
	s.ready.mqttOptional = true
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("api")
	if s.saves != nil {
		s.ready.storageConfigured = true
		s.ready.storageConnected = true
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	a := s.auth
	s.mux.HandleFunc("GET /health", s.healthHandler)
	s.mux.HandleFunc("GET /ready", s.readyHandler)
	s.mux.HandleFunc("GET /events", a.RequirePlayer(eventsHandler))
	s.mux.HandleFunc("GET /ws", a.RequirePlayer(s.wsEventsHandler))

	s.mux.HandleFunc("GET /story/current", a.RequirePlayer(s.currentHandler))
	s.mux.HandleFunc("GET /story/history", a.RequirePlayer(s.historyHandler))
	s.mux.HandleFunc("POST /story/advance", a.RequirePlayer(s.advanceHandler))
	s.mux.HandleFunc("POST /story/start", a.RequireAdmin(s.startHandler))
	s.mux.HandleFunc("POST /story/stop", a.RequireAdmin(s.stopHandler))
	s.mux.HandleFunc("GET /story/variables", a.RequireAdmin(s.variablesHandler))

	s.mux.HandleFunc("POST /story/save", a.RequireAdmin(s.saveHandler))
	s.mux.HandleFunc("DELETE /story/save", a.RequireAdmin(s.deleteSaveHandler))
	s.mux.HandleFunc("POST /story/load", a.RequireAdmin(s.loadHandler))
	s.mux.HandleFunc("GET /story/saves", a.RequireAdmin(s.listSavesHandler))

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// SetMQTTConnected records broker connectivity for /ready and /metrics.
func (s *Server) SetMQTTConnected(ok bool) {
	s.ready.mu.Lock()
	s.ready.mqttConnected = ok
	s.ready.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetMQTTConnected(ok)
	}
}

// SetStorageConnected records save store reachability.
func (s *Server) SetStorageConnected(ok bool) {
	s.ready.mu.Lock()
	s.ready.storageConnected = ok
	s.ready.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetStorageConnected(ok)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// TLS is used when cfg names both a certificate and a key.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLSCert != "" {
		tlsCfg, err := LoadTLSConfig(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Bool("tls", srv.TLSConfig != nil))
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events.CloseAllSubscribers()
		return srv.Shutdown(shutdownCtx)
	}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Story     string `json:"story"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   version.Name,
		Version:   version.Version,
		Story:     s.runtime.Story().ID,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type ReadinessResponse struct {
	Ready            bool `json:"ready"`
	MQTTConnected    bool `json:"mqtt_connected"`
	StorageConnected bool `json:"storage_connected"`
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.ready.mu.RLock()
	resp := ReadinessResponse{
		MQTTConnected:    s.ready.mqttConnected,
		StorageConnected: s.ready.storageConnected,
	}
	mqttOK := s.ready.mqttConnected || s.ready.mqttOptional
	storageOK := s.ready.storageConnected || !s.ready.storageConfigured
	s.ready.mu.RUnlock()

	resp.Ready = mqttOK && storageOK
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

// StoryResponse is the body of every /story endpoint.
type StoryResponse struct {
	OK    bool               `json:"ok"`
	Error string             `json:"error,omitempty"`
	View  *orchestrator.View `json:"view,omitempty"`
}

type StartRequest struct {
	Entry string `json:"entry"`
}

type AdvanceRequest struct {
	// Index is required on Choice nodes and ignored elsewhere.
	Index *int `json:"index"`
}

func (s *Server) currentHandler(w http.ResponseWriter, r *http.Request) {
	s.writeView(w)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runtime.History())
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.runtime.Start(narrative.NodeRef(req.Entry)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	index := narrative.NoIndex
	if req.Index != nil {
		index = *req.Index
	}
	if _, err := s.runtime.Advance(index); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Stop(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) variablesHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runtime.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"local":     snap.Local,
		"global":    snap.Global,
		"inventory": snap.Inventory,
	})
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSaves(w) {
		return
	}
	if err := s.runtime.SaveTo(r.Context(), s.saves); err != nil {
		s.SetStorageConnected(false)
		s.writeError(w, err)
		return
	}
	s.SetStorageConnected(true)
	s.writeView(w)
}

func (s *Server) loadHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSaves(w) {
		return
	}
	if err := s.runtime.LoadFrom(r.Context(), s.saves); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w)
}

func (s *Server) deleteSaveHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSaves(w) {
		return
	}
	if err := s.runtime.DeleteFrom(r.Context(), s.saves); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StoryResponse{OK: true})
}

type SaveSummary struct {
	SessionID string    `json:"sessionId"`
	StoryID   string    `json:"storyId"`
	SavedAt   time.Time `json:"savedAt"`
}

func (s *Server) listSavesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireSaves(w) {
		return
	}
	saves, err := s.saves.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]SaveSummary, 0, len(saves))
	for _, save := range saves {
		out = append(out, SaveSummary{SessionID: save.SessionID, StoryID: save.StoryID, SavedAt: save.SavedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) requireSaves(w http.ResponseWriter) bool {
	if s.saves == nil {
		writeJSON(w, http.StatusNotImplemented, StoryResponse{Error: "no save store configured"})
		return false
	}
	return true
}

func (s *Server) writeView(w http.ResponseWriter) {
	view := s.runtime.View()
	writeJSON(w, http.StatusOK, StoryResponse{OK: true, View: &view})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	view := s.runtime.View()
	writeJSON(w, status, StoryResponse{Error: err.Error(), View: &view})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, narrative.ErrIndexRequired),
		errors.Is(err, narrative.ErrIndexOutOfRange),
		errors.Is(err, orchestrator.ErrStoryMismatch),
		errors.Is(err, orchestrator.ErrInvalidSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, narrative.ErrNodeNotFound),
		errors.Is(err, storage.ErrSaveNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNotActive),
		errors.Is(err, orchestrator.ErrAlreadyActive),
		errors.Is(err, orchestrator.ErrChoiceUnavailable):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeBody reads an optional JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, StoryResponse{Error: "invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
