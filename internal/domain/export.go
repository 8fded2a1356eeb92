package domain

import (
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ExportRow is a single row of the spreadsheet mirror.
// Position is the 1-based place of the visitor in arrival order at the time
// of the rebuild. It is NOT the durable visitor ID: deleting a visitor shifts
// the position of every later row down by one.
type ExportRow struct {
	Position  int
	Name      string
	Phone     string
	Email     string
	Date      string
	Purpose   string
	MeetsWhom string
	Comments  string
	ArrivedAt string // TimestampLayout, UTC
}

// Record flattens the row into spreadsheet cells, in header order.
func (r ExportRow) Record() []string {
	return []string{
		strconv.Itoa(r.Position),
		r.Name,
		r.Phone,
		r.Email,
		r.Date,
		r.Purpose,
		r.MeetsWhom,
		r.Comments,
		r.ArrivedAt,
	}
}

// ExportFormat names an artifact encoding.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// RebuildResult describes a successfully written artifact.
type RebuildResult struct {
	// ID tags the rebuild's log lines.
	ID        uuid.UUID    `json:"id"`
	Path      string       `json:"path"`
	Format    ExportFormat `json:"format"`
	Rows      int          `json:"rows"`
	RebuiltAt time.Time    `json:"rebuilt_at"`
}

// MirrorStatus reports where the artifact lives and whether it is current.
// Stale is true when the most recent rebuild attempt failed, meaning the file
// on disk lags behind the database until the next successful rebuild.
type MirrorStatus struct {
	Path       string       `json:"path"`
	Format     ExportFormat `json:"format"`
	Exists     bool         `json:"exists"`
	SizeBytes  int64        `json:"size_bytes"`
	ModifiedAt *time.Time   `json:"modified_at,omitempty"`
	Stale      bool         `json:"stale"`
	LastError  string       `json:"last_error,omitempty"`

	// LastRebuild is the most recent successful rebuild by this process.
	LastRebuild *RebuildResult `json:"last_rebuild,omitempty"`
}

// Artifact is an open handle on the current export file, for download.
// The caller closes it.
type Artifact struct {
	io.ReadSeekCloser
	Name        string
	ContentType string
	ModTime     time.Time
}
