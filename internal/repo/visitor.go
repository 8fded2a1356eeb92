// Package repo contains all database access logic for the Visitor Logbook API.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VisitorRepo defines the persistence operations for Visitors.
// The service layer depends on this interface, not the Postgres implementation.
type VisitorRepo interface {
	// Create inserts a new visitor and returns the persisted record with the
	// DB-generated id and created_at populated.
	Create(ctx context.Context, v domain.Visitor) (domain.Visitor, error)

	// GetByID retrieves a single visitor.
	// Returns domain.ErrNotFound if no visitor with that ID exists.
	GetByID(ctx context.Context, id int64) (domain.Visitor, error)

	// List returns all visitors in arrival order, oldest first.
	List(ctx context.Context) ([]domain.Visitor, error)

	// Delete permanently removes a visitor. Returns domain.ErrNotFound if it
	// does not exist.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored visitors.
	Count(ctx context.Context) (int, error)
}

// pgVisitorRepo is the Postgres implementation of VisitorRepo.
type pgVisitorRepo struct {
	db db
}

// NewVisitorRepo constructs a VisitorRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewVisitorRepo(db db) VisitorRepo {
	return &pgVisitorRepo{db: db}
}

const visitorColumns = `id, name, phone, email, date, purpose, meets_whom, comments, created_at`

// Create inserts a new visitor row and returns the full persisted record.
func (r *pgVisitorRepo) Create(ctx context.Context, v domain.Visitor) (domain.Visitor, error) {
	const q = `
		INSERT INTO visitors (name, phone, email, date, purpose, meets_whom, comments)
		VALUES (@name, @phone, @email, @date, @purpose, @meets_whom, @comments)
		RETURNING ` + visitorColumns

	args := pgx.NamedArgs{
		"name":       v.Name,
		"phone":      v.Phone,
		"email":      v.Email,
		"date":       v.Date,
		"purpose":    v.Purpose,
		"meets_whom": v.MeetsWhom,
		"comments":   v.Comments,
	}

	result, err := scanVisitor(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Visitor{}, fmt.Errorf("repo.VisitorRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a visitor by primary key.
func (r *pgVisitorRepo) GetByID(ctx context.Context, id int64) (domain.Visitor, error) {
	const q = `SELECT ` + visitorColumns + ` FROM visitors WHERE id = @id`

	result, err := scanVisitor(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Visitor{}, fmt.Errorf("repo.VisitorRepo.GetByID: %w", err)
	}
	return result, nil
}

// List returns all visitors ordered by arrival, oldest first.
// id breaks ties so the order is total.
func (r *pgVisitorRepo) List(ctx context.Context) ([]domain.Visitor, error) {
	const q = `SELECT ` + visitorColumns + ` FROM visitors ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.VisitorRepo.List: %w", err)
	}
	defer rows.Close()

	visitors := []domain.Visitor{}
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.VisitorRepo.List: scan: %w", err)
		}
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.VisitorRepo.List: rows: %w", err)
	}

	return visitors, nil
}

// Delete removes a visitor by primary key.
func (r *pgVisitorRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM visitors WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.VisitorRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.VisitorRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// Count returns the total number of visitors.
func (r *pgVisitorRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM visitors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.VisitorRepo.Count: %w", err)
	}
	return n, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanVisitor maps a single database row into a domain.Visitor.
// Column order must match visitorColumns.
func scanVisitor(s scanner) (domain.Visitor, error) {
	var v domain.Visitor
	err := s.Scan(&v.ID, &v.Name, &v.Phone, &v.Email, &v.Date, &v.Purpose,
		&v.MeetsWhom, &v.Comments, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Visitor{}, domain.ErrNotFound
		}
		return domain.Visitor{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}
