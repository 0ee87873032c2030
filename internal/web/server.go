package web

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/vbonduro/donormap/internal/directory"
	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/geo"
	"github.com/vbonduro/donormap/internal/metrics"
	"github.com/vbonduro/donormap/internal/service"
)

// Options carries the Server's collaborators. Views, Donors and Templates
// are required.
type Options struct {
	Views     *directory.Registry
	Donors    *service.DonorService
	Templates fs.FS
	// IPLookup, when set, is the fallback for POST /map/locate requests
	// that carry no browser coordinates.
	IPLookup *geo.IPLookup
	Sessions *sessions.CookieStore
	Metrics  *metrics.Manager
	Logger   *slog.Logger

	IdentityUserHeader  string
	IdentityEmailHeader string
}

type Server struct {
	views     *directory.Registry
	donors    *service.DonorService
	templates fs.FS
	ipLookup  *geo.IPLookup
	sessions  *sessions.CookieStore
	metrics   *metrics.Manager
	logger    *slog.Logger
	router    chi.Router
	tmplFuncs template.FuncMap

	userHeader  string
	emailHeader string
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Sessions
	if store == nil {
		store = NewSessionStore(nil, false)
	}
	s := &Server{
		views:       opts.Views,
		donors:      opts.Donors,
		templates:   opts.Templates,
		ipLookup:    opts.IPLookup,
		sessions:    store,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "web"),
		userHeader:  headerOr(opts.IdentityUserHeader, "X-Auth-User-Id"),
		emailHeader: headerOr(opts.IdentityEmailHeader, "X-Auth-User-Email"),
		tmplFuncs: template.FuncMap{
			"colorFor":   directory.ColorFor,
			"badge":      directory.AvailabilityBadge,
			"registered": directory.RegisteredLabel,
			"groups":     func() []domain.BloodGroup { return domain.BloodGroups },
			"statuses":   func() []domain.Availability { return domain.Availabilities },
		},
	}
	s.router = s.routes()
	return s
}

func headerOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(securityHeaders)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/map", http.StatusSeeOther)
	})
	r.Route("/map", func(r chi.Router) {
		r.Get("/", s.handleMap)
		r.Get("/sidebar", s.handleSidebar)
		r.Get("/markers", s.handleMarkers)
		r.Post("/filters", s.handleSetFilters)
		r.Post("/apply", s.handleApply)
		r.Post("/clear", s.handleClear)
		r.Post("/locate", s.handleLocate)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.requireIdentity)
		r.Get("/donors/new", s.handleDonorForm)
		r.Post("/donors", s.handleRegisterDonor)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// securityHeaders adds defensive HTTP response headers to every response.
// Leaflet and htmx load from unpkg and map tiles from OpenStreetMap.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"img-src 'self' data: https://*.tile.openstreetmap.org https://unpkg.com; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(route, r.Method, status, elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses and executes a single named partial template.
// The file must contain exactly one {{define "name"}}...{{end}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	name := file
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		name = file[idx+1:]
	}
	name = strings.TrimSuffix(name, ".html")
	return tmpl.ExecuteTemplate(w, name, data)
}
