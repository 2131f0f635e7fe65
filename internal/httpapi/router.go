package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pokewatch/internal/services/scraping"
	"pokewatch/internal/snapshot"
)

const readiness = "JB Hi-Fi Pokémon scraper is running."

type Runner interface {
	Run(ctx context.Context) scraping.Summary
}

type Options struct {
	// RunAsync makes GET /run start a pass in the background and return 202.
	RunAsync    bool
	CORSOrigins []string
	// Profiling mounts net/http/pprof under /debug/pprof.
	Profiling bool
}

type Handler struct {
	service   Runner
	snapshots *snapshot.Store
	opts      Options
	logger    *zap.Logger
}

// NewHandler builds the HTTP surface. snapshots may be nil, in which case
// every /debug/{filename} lookup is a 404.
func NewHandler(service Runner, snapshots *snapshot.Store, opts Options, logger *zap.Logger) *Handler {
	return &Handler{service: service, snapshots: snapshots, opts: opts, logger: logger.Named("http")}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", h.handleIndex)
	r.Get("/run", h.handleRun)
	r.Get("/debug/{filename}", h.handleDebugFile)
	r.Handle("/metrics", promhttp.Handler())
	if h.opts.Profiling {
		r.Mount("/debug/pprof", profilingRoutes())
	}
	return r
}

// profilingRoutes serves pprof. Index resolves named profiles (heap,
// goroutine, ...) from the path under /debug/pprof/.
func profilingRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", pprof.Index)
	r.Get("/cmdline", pprof.Cmdline)
	r.Get("/profile", pprof.Profile)
	r.Get("/symbol", pprof.Symbol)
	r.Post("/symbol", pprof.Symbol)
	r.Get("/trace", pprof.Trace)
	r.Get("/{profile}", pprof.Index)
	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(readiness))
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.async(r) {
		go h.service.Run(context.Background())
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Run started"})
		return
	}

	// The pass keeps going if the client hangs up.
	summary := h.service.Run(context.WithoutCancel(r.Context()))
	status := http.StatusOK
	if !summary.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, summary)
}

func (h *Handler) async(r *http.Request) bool {
	if v := r.URL.Query().Get("async"); v != "" {
		async, err := strconv.ParseBool(v)
		return err == nil && async
	}
	return h.opts.RunAsync
}

func (h *Handler) handleDebugFile(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		http.NotFound(w, r)
		return
	}
	path, err := h.snapshots.Path(chi.URLParam(r, "filename"))
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) && !errors.Is(err, snapshot.ErrInvalidName) {
			h.logger.Warn("snapshot lookup failed", zap.Error(err))
		}
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
