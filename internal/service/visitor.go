// Package service contains the business logic for the Visitor Logbook API.
// Services validate inputs, enforce business rules, and orchestrate repo and
// mirror calls. No SQL lives here; services depend on repo interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkordes/visitor-logbook/internal/domain"
	"github.com/pkordes/visitor-logbook/internal/repo"
)

// VisitorService implements the visitor store operations.
// Mutations are serialized with their mirror rebuild through ExportService.
type VisitorService struct {
	visitors repo.VisitorRepo
	tx       repo.Transactor
	export   *ExportService
	log      *slog.Logger
}

// NewVisitorService constructs a VisitorService. Reads go to r, writes run
// inside tx, and every committed write triggers export's rebuild.
func NewVisitorService(r repo.VisitorRepo, tx repo.Transactor, export *ExportService, log *slog.Logger) *VisitorService {
	if log == nil {
		log = slog.Default()
	}
	return &VisitorService{visitors: r, tx: tx, export: export, log: log}
}

// Create validates and persists a new visitor, then rebuilds the mirror.
//
// When the visitor was stored but the mirror could not be written, Create
// returns the stored visitor together with an error matching
// domain.ErrMirrorWrite; the insert is not rolled back.
func (s *VisitorService) Create(ctx context.Context, v domain.Visitor) (domain.Visitor, error) {
	if err := validate(v); err != nil {
		return domain.Visitor{}, fmt.Errorf("service.VisitorService.Create: %w", err)
	}

	var created domain.Visitor
	err := s.export.mutate(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(r repo.VisitorRepo) error {
			var err error
			created, err = r.Create(ctx, v)
			return err
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMirrorWrite):
		s.log.WarnContext(ctx, "visitor stored but export not updated", "id", created.ID, "error", err)
		return created, fmt.Errorf("service.VisitorService.Create: %w", err)
	default:
		return domain.Visitor{}, fmt.Errorf("service.VisitorService.Create: %w: %w", domain.ErrPersistence, err)
	}

	s.log.InfoContext(ctx, "visitor created", "id", created.ID)
	return created, nil
}

// List returns every visitor, oldest first. It does not take the mutation lock.
func (s *VisitorService) List(ctx context.Context) ([]domain.Visitor, error) {
	visitors, err := s.visitors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.VisitorService.List: %w: %w", domain.ErrPersistence, err)
	}
	return visitors, nil
}

// Get returns a single visitor. Returns domain.ErrNotFound for an unknown id.
func (s *VisitorService) Get(ctx context.Context, id int64) (domain.Visitor, error) {
	v, err := s.visitors.GetByID(ctx, id)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Visitor{}, fmt.Errorf("service.VisitorService.Get: %w", err)
	default:
		return domain.Visitor{}, fmt.Errorf("service.VisitorService.Get: %w: %w", domain.ErrPersistence, err)
	}
}

// Delete permanently removes a visitor, then rebuilds the mirror.
// Returns domain.ErrNotFound for an unknown id, leaving the store unchanged.
// An error matching domain.ErrMirrorWrite means the delete was committed.
func (s *VisitorService) Delete(ctx context.Context, id int64) error {
	err := s.export.mutate(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(r repo.VisitorRepo) error {
			return r.Delete(ctx, id)
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("service.VisitorService.Delete: %w", err)
	case errors.Is(err, domain.ErrMirrorWrite):
		s.log.WarnContext(ctx, "visitor deleted but export not updated", "id", id, "error", err)
		return fmt.Errorf("service.VisitorService.Delete: %w", err)
	default:
		return fmt.Errorf("service.VisitorService.Delete: %w: %w", domain.ErrPersistence, err)
	}

	s.log.InfoContext(ctx, "visitor deleted", "id", id)
	return nil
}

// Count returns the number of stored visitors. The health check uses it to
// confirm the database answers.
func (s *VisitorService) Count(ctx context.Context) (int, error) {
	n, err := s.visitors.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("service.VisitorService.Count: %w: %w", domain.ErrPersistence, err)
	}
	return n, nil
}

// validate reports the first required field, in form order, that is empty or
// only whitespace. Values are stored as submitted.
func validate(v domain.Visitor) error {
	for _, f := range v.RequiredFields() {
		if strings.TrimSpace(f.Value) == "" {
			return &domain.ValidationError{Field: f.Name}
		}
	}
	return nil
}
