package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Auth          *Auth
	Importer      Importer
	Progress      ProgressSource
	Exporter      Exporter
	Matcher       Matcher
	Purger        Purger
	Users         UserEnsurer
	Archive       Archiver // nil: без архива
	Live          LiveServer
	Log           *slog.Logger
	CORSOrigins   []string
	ExposeMetrics bool
}

func NewRouter(d RouterDeps) http.Handler {
	h := &handlers{
		importer: d.Importer,
		progress: d.Progress,
		exporter: d.Exporter,
		matcher:  d.Matcher,
		purger:   d.Purger,
		users:    d.Users,
		archive:  d.Archive,
		live:     d.Live,
		log:      d.Log,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(observe(d.Log))
	r.Use(newCORS(d.CORSOrigins))

	r.Get("/health", h.health)
	if d.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(authenticate(d.Auth))
		api.Post("/imports", h.postImport)
		api.Get("/imports/progress", h.getProgress)
		api.Get("/ws", h.websocket)
		api.Get("/exports/slabs", h.exportSlabs)
		api.Get("/slabs/compatible", h.compatible)
		api.Delete("/slabs", h.deleteSlabs)
	})
	return r
}
