// Package mirror regenerates the spreadsheet copy of the visitor log.
//
// The artifact is always rebuilt from scratch: row numbers are positions in
// arrival order, so a single deletion renumbers every later row and a full
// rewrite is the simplest way to keep them gap-free. Writes go to a temp
// file in the destination directory that is then renamed over the old
// artifact, so readers never see a half-written file.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// Encoder serializes export rows, header included, into one artifact format.
type Encoder interface {
	Format() domain.ExportFormat
	ContentType() string
	Encode(w io.Writer, rows []domain.ExportRow) error
}

// CellLoss is a value an encoder could not store exactly as given.
type CellLoss struct {
	Position int
	Column   string
	Reason   string
}

// lossReporter is implemented by encoders whose format cannot hold every
// string verbatim.
type lossReporter interface {
	Losses(rows []domain.ExportRow) []CellLoss
}

// EncoderFor returns the encoder for format.
func EncoderFor(format domain.ExportFormat) (Encoder, error) {
	switch format {
	case domain.FormatXLSX:
		return XLSXEncoder{}, nil
	case domain.FormatCSV:
		return CSVEncoder{}, nil
	default:
		return nil, fmt.Errorf("mirror: unsupported export format %q", format)
	}
}

// Config describes where the artifact lives.
type Config struct {
	// Path is the artifact location. It should be absolute.
	Path string

	// Format selects the encoder.
	Format domain.ExportFormat

	// Relocate makes every rebuild look for a moved artifact: if nothing
	// exists at Path, the first SearchDirs entry holding a file with Path's
	// base name becomes the destination for that rebuild.
	Relocate   bool
	SearchDirs []string
}

// Mirror writes the artifact. It holds no mutable state, so concurrent
// Status and Open calls are safe; callers serialize Rebuild.
type Mirror struct {
	cfg Config
	enc Encoder
	log *slog.Logger
	now func() time.Time
}

// New constructs a Mirror for cfg.
func New(cfg Config, log *slog.Logger) (*Mirror, error) {
	enc, err := EncoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.New("mirror: path is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{cfg: cfg, enc: enc, log: log, now: time.Now}, nil
}

// Format reports the configured artifact format.
func (m *Mirror) Format() domain.ExportFormat { return m.enc.Format() }

// ContentType is the MIME type of the artifact.
func (m *Mirror) ContentType() string { return m.enc.ContentType() }

// Rebuild discards the current artifact and writes a new one from visitors.
// The destination is resolved once, at the start of the call.
// Any failure to produce the file is returned as *domain.MirrorWriteError.
func (m *Mirror) Rebuild(ctx context.Context, visitors []domain.Visitor) (domain.RebuildResult, error) {
	dest := m.Destination()
	if err := ctx.Err(); err != nil {
		return domain.RebuildResult{}, &domain.MirrorWriteError{Path: dest, Err: err}
	}

	id := uuid.New()
	rows := Project(visitors)
	if lr, ok := m.enc.(lossReporter); ok {
		for _, loss := range lr.Losses(rows) {
			m.log.WarnContext(ctx, "export cell not stored verbatim",
				"rebuild_id", id,
				"position", loss.Position,
				"column", loss.Column,
				"reason", loss.Reason,
			)
		}
	}

	var buf bytes.Buffer
	err := m.enc.Encode(&buf, rows)
	if err == nil {
		err = writeArtifact(dest, &buf)
	}
	if err != nil {
		m.log.WarnContext(ctx, "export rebuild failed", "rebuild_id", id, "path", dest, "error", err)
		return domain.RebuildResult{}, &domain.MirrorWriteError{Path: dest, Err: err}
	}

	m.log.InfoContext(ctx, "export rebuilt", "rebuild_id", id, "path", dest, "format", m.enc.Format(), "rows", len(rows))
	return domain.RebuildResult{
		ID:        id,
		Path:      dest,
		Format:    m.enc.Format(),
		Rows:      len(rows),
		RebuiltAt: m.now().UTC(),
	}, nil
}

// Destination resolves where the next rebuild will write.
func (m *Mirror) Destination() string {
	if !m.cfg.Relocate || isRegularFile(m.cfg.Path) {
		return m.cfg.Path
	}
	base := filepath.Base(m.cfg.Path)
	for _, dir := range m.cfg.SearchDirs {
		candidate := filepath.Join(dir, base)
		if isRegularFile(candidate) {
			return candidate
		}
	}
	return m.cfg.Path
}

// Status reports the artifact's location and on-disk state. Stale and
// LastError are left for the caller, which knows the rebuild history.
func (m *Mirror) Status() domain.MirrorStatus {
	dest := m.Destination()
	st := domain.MirrorStatus{Path: dest, Format: m.enc.Format()}
	if fi, err := os.Stat(dest); err == nil && fi.Mode().IsRegular() {
		mod := fi.ModTime().UTC()
		st.Exists = true
		st.SizeBytes = fi.Size()
		st.ModifiedAt = &mod
	}
	return st
}

// Open opens the current artifact for reading.
// Returns domain.ErrNotFound if no artifact has been written yet.
func (m *Mirror) Open() (*os.File, os.FileInfo, error) {
	dest := m.Destination()
	f, err := os.Open(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("mirror.Open: %w", domain.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("mirror.Open: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mirror.Open: %w", err)
	}
	return f, fi, nil
}

// writeArtifact replaces path with the contents of r. atomic.WriteFile
// stages a temp file beside path and swaps it in, removing it on failure.
func writeArtifact(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	if err := atomic.WriteFile(path, r); err != nil {
		return err
	}
	// A replaced artifact keeps its mode; a new one starts out owner-only.
	if errors.Is(statErr, fs.ErrNotExist) {
		return os.Chmod(path, 0o644)
	}
	return nil
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
