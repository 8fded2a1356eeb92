// export.go implements the spreadsheet mirror endpoints: downloading the
// current artifact, reporting where it lives, and forcing a rebuild after a
// failed write.
package handler

import (
	"errors"
	"mime"
	"net/http"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// GetExport handles GET /export by streaming the artifact as it is on disk.
// It does not rebuild; a stale artifact is served as is.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	art, err := s.export.OpenArtifact(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	defer art.Close()

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	http.ServeContent(w, r, art.Name, art.ModTime, art)
}

// GetExportLocation handles GET /export/location.
func (s *Server) GetExportLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.export.Status(r.Context()))
}

// RebuildExport handles POST /export/rebuild, the manual retry after the
// artifact was locked or otherwise unwritable.
func (s *Server) RebuildExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.export.Rebuild(r.Context())
	if err != nil {
		var mwe *domain.MirrorWriteError
		if errors.As(err, &mwe) {
			s.log.WarnContext(r.Context(), "manual export rebuild failed", "path", mwe.Path, "error", mwe.Err)
			writeError(w, http.StatusInternalServerError, mwe.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
