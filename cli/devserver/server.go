package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"orchestrator/cli/logger"
)

type Options struct {
	Token     string   // static bearer token; empty disables
	JWTSecret []byte   // HS256 secret; empty disables
	Origins   []string // extra CORS origins
	Logger    *zap.Logger
}

// Server routes the deployment endpoints onto a Store and pushes change
// notices through a Hub.
type Server struct {
	Store *Store
	Hub   *Hub
	log   *zap.Logger
	r     chi.Router
}

func New(store *Store, opts Options) *Server {
	log := logger.OrNop(opts.Logger)
	s := &Server{Store: store, Hub: NewHub(log), log: log}

	origins := append([]string{"http://localhost:5173", "http://localhost:3000"}, opts.Origins...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token, opts.JWTSecret))
		r.Route("/api/deployments", func(r chi.Router) {
			r.Get("/", s.list)
			r.Get("/{id}/logs/", s.status)
			r.Post("/{id}/resume/", s.resume)
		})
		r.Get("/ws/deployments/{id}/", s.subscribe)
	})
	s.r = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.r.ServeHTTP(w, r) }

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid page_size")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.Store.List(limit))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	d, err := s.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	d, err := s.Store.Resume(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrNotFailed):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info("deployment resumed", zap.String("deployment", d.ID))
	s.notify(d)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "resumed"})
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.Hub.Connect(w, r, id)
}

func (s *Server) notify(d Deployment) {
	s.Hub.Broadcast(Notice{Type: "deployment.updated", DeploymentID: d.ID, Status: d.Status})
}

// Seed creates n pending deployments.
func (s *Server) Seed(n int) []Deployment {
	out := make([]Deployment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Store.Create("acme", "shop-"+strconv.Itoa(i+1)))
	}
	return out
}

// Step advances every active deployment once, failing the one named by
// failOn when it reaches that step for the first time.
func (s *Server) Step(failOn string) {
	for _, id := range s.Store.Active() {
		d, changed, err := s.Store.Advance(id)
		if err != nil || !changed {
			continue
		}
		if failOn != "" && d.Status == "running" && runningKey(d) == failOn && !hasFailed(d, failOn) {
			if fd, err := s.Store.Fail(id, "exit status 1"); err == nil {
				d = fd
			}
		}
		s.notify(d)
	}
}

// Run advances deployments every interval until ctx ends. The first step
// happens immediately.
func (s *Server) Run(ctx context.Context, interval time.Duration, failOn string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Step(failOn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step(failOn)
		}
	}
}

func runningKey(d Deployment) string {
	for _, st := range d.Steps {
		if st.Status == "running" {
			return st.Key
		}
	}
	return ""
}

// hasFailed reports whether key already failed once; resumed runs go through.
func hasFailed(d Deployment, key string) bool {
	for _, e := range d.Logs {
		if e.Type == "error" && e.Message == key+" failed: exit status 1" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
