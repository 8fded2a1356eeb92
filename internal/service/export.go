package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkordes/visitor-logbook/internal/domain"
	"github.com/pkordes/visitor-logbook/internal/repo"
)

// Mirror is the spreadsheet writer ExportService drives.
// *mirror.Mirror satisfies it.
type Mirror interface {
	Rebuild(ctx context.Context, visitors []domain.Visitor) (domain.RebuildResult, error)
	Status() domain.MirrorStatus
	Open() (*os.File, os.FileInfo, error)
	ContentType() string
}

// ExportService keeps the spreadsheet mirror in step with the visitor store.
//
// It owns the mutation lock: every store mutation runs through mutate, which
// holds the lock across the mutation and the rebuild it triggers, so no other
// writer can change the store in between and the artifact always reflects a
// state some caller committed. The lock is two-level: mu orders callers in
// this process, and locker (a database advisory lock) orders this process
// against others, such as cmd/rebuild. Reads (List, Status, OpenArtifact)
// never take the lock.
type ExportService struct {
	mu       sync.Mutex
	locker   repo.Locker
	visitors repo.VisitorRepo
	mirror   Mirror
	log      *slog.Logger

	stateMu sync.RWMutex
	last    *domain.RebuildResult
	lastErr error
}

// NewExportService constructs an ExportService that reads visitors from r
// and holds locker across every mutation and rebuild.
func NewExportService(r repo.VisitorRepo, locker repo.Locker, m Mirror, log *slog.Logger) *ExportService {
	if log == nil {
		log = slog.Default()
	}
	return &ExportService{locker: locker, visitors: r, mirror: m, log: log}
}

// lock takes both levels of the mutation lock.
func (s *ExportService) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		s.mu.Unlock()
	}, nil
}

// Rebuild regenerates the artifact from the current store contents.
// It is the explicit retry after a failed mirror write.
func (s *ExportService) Rebuild(ctx context.Context) (domain.RebuildResult, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return domain.RebuildResult{}, fmt.Errorf("service.ExportService.Rebuild: %w", err)
	}
	defer unlock()

	res, err := s.rebuildLocked(ctx)
	if err != nil {
		return domain.RebuildResult{}, fmt.Errorf("service.ExportService.Rebuild: %w", err)
	}
	return res, nil
}

// Status reports the artifact's location and whether the last rebuild failed.
func (s *ExportService) Status(_ context.Context) domain.MirrorStatus {
	st := s.mirror.Status()

	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.lastErr != nil {
		st.Stale = true
		st.LastError = s.lastErr.Error()
	}
	if s.last != nil {
		last := *s.last
		st.LastRebuild = &last
	}
	return st
}

// OpenArtifact opens the current artifact for download.
// Returns domain.ErrNotFound when nothing has been written yet.
func (s *ExportService) OpenArtifact(_ context.Context) (domain.Artifact, error) {
	f, fi, err := s.mirror.Open()
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("service.ExportService.OpenArtifact: %w", err)
	}
	return domain.Artifact{
		ReadSeekCloser: f,
		Name:           filepath.Base(f.Name()),
		ContentType:    s.mirror.ContentType(),
		ModTime:        fi.ModTime(),
	}, nil
}

// mutate runs fn under the mutation lock and, if fn succeeds, rebuilds the
// mirror before releasing it. An error from fn is returned as is and skips the
// rebuild. A rebuild failure matches domain.ErrMirrorWrite and means fn's
// changes are committed.
func (s *ExportService) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return fmt.Errorf("export lock: %w", err)
	}
	defer unlock()

	if err := fn(ctx); err != nil {
		return err
	}
	// fn has committed; a client hanging up must not leave the artifact behind.
	_, err = s.rebuildLocked(context.WithoutCancel(ctx))
	return err
}

// rebuildLocked must be called with the mutation lock held.
func (s *ExportService) rebuildLocked(ctx context.Context) (domain.RebuildResult, error) {
	visitors, err := s.visitors.List(ctx)
	if err != nil {
		err = fmt.Errorf("%w: list visitors: %w", domain.ErrMirrorWrite, err)
		s.record(nil, err)
		return domain.RebuildResult{}, err
	}

	res, err := s.mirror.Rebuild(ctx, visitors)
	if err != nil {
		s.record(nil, err)
		return domain.RebuildResult{}, err
	}
	s.record(&res, nil)
	return res, nil
}

func (s *ExportService) record(res *domain.RebuildResult, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if res != nil {
		s.last = res
	}
	s.lastErr = err
}
