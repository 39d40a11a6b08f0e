// Package router wires every HTTP route of the application.
//
// Route table (prefix defaults to /student):
//
//	GET  {prefix}/              → list all students
//	GET  {prefix}/search        → filtered list (?keyword=)
//	GET  {prefix}/create        → creation form
//	POST {prefix}/create        → create (multipart, file field "image")
//	GET  {prefix}/update/{id}   → update form
//	POST {prefix}/update/{id}   → update (multipart, file field "image")
//	GET  /images/*              → uploaded images (disk store only)
//	GET  /metrics               → Prometheus
//	GET  /healthz               → storage ping
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/students-web/internal/http/handlers/student"
	"github.com/aanand-mishra/students-web/internal/http/middleware"
	"github.com/aanand-mishra/students-web/internal/storage"
	"github.com/aanand-mishra/students-web/internal/utils/response"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options are the pieces New needs beyond the student handler deps.
type Options struct {
	Logger  *slog.Logger
	Metrics *middleware.Metrics

	// ImageDir, if set, is served under /images/.
	ImageDir string
}

// New builds the chi router.
func New(deps student.Deps, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		if deps.Metrics == nil {
			deps.Metrics = opts.Metrics
		}
	}

	prefix := deps.Prefix
	if prefix == "" {
		prefix = "/"
	}

	r.Route(prefix, func(r chi.Router) {
		r.Get("/", student.List(deps))
		r.Get("/search", student.Search(deps))
		r.Get("/create", student.CreateForm(deps))
		r.Post("/create", student.Create(deps))
		r.Get("/update/{id}", student.UpdateForm(deps))
		r.Post("/update/{id}", student.Update(deps))
	})

	if opts.ImageDir != "" {
		r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(opts.ImageDir))))
	}

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Get("/healthz", health(deps.Storage))

	return r
}

func health(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.Ping(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}
		response.WriteJSON(w, http.StatusOK, response.Response{Status: response.StatusOK})
	}
}
