// Package handler implements the HTTP handlers for the Visitor Logbook API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, visitor.go, export.go) but share the same Server struct.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// VisitorServicer defines the visitor operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type VisitorServicer interface {
	Create(ctx context.Context, v domain.Visitor) (domain.Visitor, error)
	List(ctx context.Context) ([]domain.Visitor, error)
	Get(ctx context.Context, id int64) (domain.Visitor, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// ExportServicer defines the spreadsheet mirror operations.
type ExportServicer interface {
	Rebuild(ctx context.Context) (domain.RebuildResult, error)
	Status(ctx context.Context) domain.MirrorStatus
	OpenArtifact(ctx context.Context) (domain.Artifact, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	visitors VisitorServicer
	export   ExportServicer
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(visitors VisitorServicer, export ExportServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{visitors: visitors, export: export, log: log}
}

// Handler returns the API routes. Cross-cutting middleware (request ID,
// logging, CORS, body limits) is applied by the caller.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/visitors", func(r chi.Router) {
		r.Get("/", s.ListVisitors)
		r.Post("/", s.CreateVisitor)
		r.Get("/{id}", s.GetVisitor)
		r.Delete("/{id}", s.DeleteVisitor)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/", s.GetExport)
		r.Get("/location", s.GetExportLocation)
		r.Post("/rebuild", s.RebuildExport)
	})

	return r
}
