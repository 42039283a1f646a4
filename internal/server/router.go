// Package server exposes the extraction workflow over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/reviews-extractor/internal/blob"
	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
	"github.com/joseph-ayodele/reviews-extractor/internal/extract"
)

// APIPrefix is the alternate mount point of every route.
const APIPrefix = "/api"

type Server struct {
	Extract     *extract.Service
	Artifacts   blob.LocalFS
	Credentials *credential.Store
	UIDir       string // optional static UI, served with index.html fallback
	Logger      *slog.Logger
}

func (s Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestContext)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
	})

	r.Group(s.routes)
	r.Route(APIPrefix, s.routes)

	if s.UIDir != "" {
		r.NotFound(s.serveUI)
	}
	return r
}

func (s Server) routes(r chi.Router) {
	r.Post("/extract-reviews", s.handleExtract)
	r.Get("/get-results/{batchId}", s.handleResults)
	r.Get("/download/{fileName}", s.handleDownload)
	r.Get("/config/credential", s.handleGetCredential)
	r.Post("/config/credential", s.handleUpdateCredential)
}

// requestContext tags every request with a request id and a request-scoped logger, then logs completion.
func (s Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, reqID)

		log := s.logger().With("req_id", reqID)
		ctx := common.WithRequestID(r.Context(), reqID)
		ctx = common.WithLogger(ctx, log)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serveUI serves files from UIDir and falls back to index.html for client-side routes.
// API paths never fall back.
func (s Server) serveUI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, r, common.NotFound("route not found"))
		return
	}
	if strings.HasPrefix(r.URL.Path, APIPrefix+"/") {
		writeError(w, r, common.NotFound("route not found"))
		return
	}
	rel := filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/"))
	if rel != "" && filepath.IsLocal(rel) {
		p := filepath.Join(s.UIDir, rel)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			http.ServeFile(w, r, p)
			return
		}
	}
	index := filepath.Join(s.UIDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, r, common.NotFound("route not found"))
		return
	}
	http.ServeFile(w, r, index)
}
