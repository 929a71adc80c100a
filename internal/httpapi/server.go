// Package httpapi bridges the function registry onto HTTP and WebSocket.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"projectd/internal/registry"
)

const defaultMaxBodyBytes = 64 << 20 // imports carry whole project archives

// Config tunes the HTTP surface.
type Config struct {
	CORSOrigins  []string
	MaxBodyBytes int64
}

// Server serves the registry's exposed functions. The route table is built
// once at construction; functions registered afterwards do not appear.
type Server struct {
	reg *registry.Registry
	hub *Hub
	cfg Config
	log zerolog.Logger
	mux http.Handler

	routes []string
}

// New builds the router over reg's module- and workflow-scoped functions.
func New(reg *registry.Registry, hub *Hub, cfg Config, log zerolog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{
		reg: reg,
		hub: hub,
		cfg: cfg,
		log: log.With().Str("component", "httpapi").Logger(),
	}
	s.mux = s.buildRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/info", s.handleInfo)
	r.Get("/ws", s.handleWebSocket)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, spec := range s.reg.Specs(registry.ScopeModules, registry.ScopeWorkflow) {
		path := routePath(spec)
		h := s.functionHandler(spec)
		r.Get(path, h)
		r.Post(path, h)
		s.routes = append(s.routes, path)
		s.log.Info().Str("function", spec.Name).Str("path", path).Msg("route registered")
	}
	return r
}

func routePath(spec registry.Spec) string {
	prefix := "/api/modules"
	if spec.Scope == registry.ScopeWorkflow {
		prefix = "/api/workflow"
	}
	return prefix + "/" + strings.ReplaceAll(spec.Name, ".", "/")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	specs := s.reg.Specs(registry.ScopeModules, registry.ScopeWorkflow)
	functions := make([]map[string]any, 0, len(specs))
	for _, spec := range specs {
		functions = append(functions, map[string]any{
			"name":        spec.Name,
			"path":        routePath(spec),
			"inputs":      spec.Inputs,
			"outputs":     spec.Outputs,
			"description": spec.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"routes":                len(s.routes),
		"websocket_connections": s.hub.Count(),
		"functions":             functions,
	})
}
