package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/taskstack/internal/models"
	"github.com/fentz26/taskstack/internal/sse"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint.
var Version = "dev"

// DefaultKeepAlive is the interval between keep-alive comments on idle
// event streams.
const DefaultKeepAlive = 15 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK          bool   `json:"ok"`
	DB          string `json:"db"`
	Version     string `json:"version"`
	Time        string `json:"time"`
	Subscribers int    `json:"subscribers"`
}

// Server provides the HTTP API for the task stack.
type Server struct {
	service   *Service
	metrics   *Metrics
	logger    zerolog.Logger
	addr      string
	keepAlive time.Duration
	server    *http.Server
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// NewServer creates a new HTTP server. metrics may be nil, in which case
// /metrics is not served.
func NewServer(service *Service, metrics *Metrics, addr string, logger zerolog.Logger) *Server {
	s := &Server{
		service:   service,
		metrics:   metrics,
		logger:    logger,
		addr:      addr,
		keepAlive: DefaultKeepAlive,
	}
	s.server = &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: event streams stay open.
	}
	s.server.Handler = s.Handler()
	return s
}

// SetKeepAlive changes the keep-alive interval for new event streams.
func (s *Server) SetKeepAlive(d time.Duration) {
	s.keepAlive = d
}

// Handler returns the routed API with CORS and request metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /tasks", s.listTasks)
	mux.HandleFunc("POST /tasks", s.pushTask)
	mux.HandleFunc("GET /tasks/peek", s.peekTask)
	mux.HandleFunc("DELETE /tasks/pop", s.popTask)
	mux.HandleFunc("GET /tasks/{id}", s.getTask)
	mux.HandleFunc("PATCH /tasks/{id}/toggle", s.toggleTask)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.withCORS(s.withMetrics(mux))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves on an existing listener. It returns nil once Shutdown is
// called, even if Shutdown ran first.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info().Str("addr", l.Addr().String()).Msg("starting task stack backend")
	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown ends every event stream and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.service.Hub().Close()
	return s.server.Shutdown(ctx)
}

// --- Task Handlers ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.ListTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) peekTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.PeekTask(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) pushTask(w http.ResponseWriter, r *http.Request) {
	var req models.NewTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.service.PushTask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) popTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.PopTask(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) toggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.ToggleTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleEvents streams an initial snapshot followed by every update.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before reading the snapshot so no update falls in between.
	updates, unsubscribe := s.service.Hub().Subscribe()
	defer unsubscribe()

	tasks, err := s.service.ListTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sw.Send(models.EventInitial, models.InitialPayload{Tasks: tasks}); err != nil {
		return
	}

	log := s.logger.With().Str("remote", r.RemoteAddr).Logger()
	log.Debug().Msg("event stream opened")
	defer log.Debug().Msg("event stream closed")

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := sw.Send(models.EventUpdate, u); err != nil {
				return
			}
		case <-ticker.C:
			if err := sw.Comment("keep-alive"); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		OK:          true,
		DB:          "ok",
		Version:     Version,
		Time:        time.Now().UTC().Format(time.RFC3339),
		Subscribers: s.service.Hub().Len(),
	}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// --- Middleware ---

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withMetrics(next *http.ServeMux) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// statusRecorder captures the response status and keeps streaming working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// --- Helpers ---

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, ErrEmptyStack):
		writeError(w, http.StatusNotFound, "No tasks to pop")
	case errors.Is(err, ErrInvalidTask):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
