package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/visitor-logbook/internal/domain"
	"github.com/pkordes/visitor-logbook/internal/middleware"
)

// createVisitorRequest is the JSON body of POST /visitors.
// Presence of required fields is checked by the service, not here.
type createVisitorRequest struct {
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	Date      string  `json:"date"`
	Purpose   string  `json:"purpose"`
	MeetsWhom string  `json:"meets_whom"`
	Comments  *string `json:"comments,omitempty"`
}

// visitorResponse is the JSON shape of a stored visitor.
type visitorResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Date      string `json:"date"`
	Purpose   string `json:"purpose"`
	MeetsWhom string `json:"meets_whom"`
	Comments  string `json:"comments"`
	CreatedAt string `json:"created_at"`
}

// ListVisitors handles GET /visitors. Visitors are returned oldest first,
// the same order as the spreadsheet.
func (s *Server) ListVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := s.visitors.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	out := make([]visitorResponse, len(visitors))
	for i, v := range visitors {
		out[i] = visitorToResponse(v)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateVisitor handles POST /visitors.
// A visitor that was stored but not mirrored still gets 201; the mirror
// failure is reported in the X-Export-Warning header.
func (s *Server) CreateVisitor(w http.ResponseWriter, r *http.Request) {
	var body createVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.visitors.Create(r.Context(), requestToVisitor(body))
	if err != nil {
		var invalid *domain.ValidationError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		case errors.Is(err, domain.ErrMirrorWrite):
			setExportWarning(w, err)
		default:
			s.internalError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, visitorToResponse(created))
}

// GetVisitor handles GET /visitors/{id}.
func (s *Server) GetVisitor(w http.ResponseWriter, r *http.Request) {
	id, ok := visitorID(w, r)
	if !ok {
		return
	}

	v, err := s.visitors.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "visitor not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, visitorToResponse(v))
}

// DeleteVisitor handles DELETE /visitors/{id}.
func (s *Server) DeleteVisitor(w http.ResponseWriter, r *http.Request) {
	id, ok := visitorID(w, r)
	if !ok {
		return
	}

	if err := s.visitors.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "visitor not found")
			return
		case errors.Is(err, domain.ErrMirrorWrite):
			setExportWarning(w, err)
		default:
			s.internalError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "visitor deleted"})
}

// visitorID binds the {id} path parameter, writing a 400 when it is not an
// integer.
func visitorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

// setExportWarning reports a committed mutation whose mirror rebuild failed.
func setExportWarning(w http.ResponseWriter, err error) {
	msg := "export not updated"
	var mwe *domain.MirrorWriteError
	if errors.As(err, &mwe) {
		msg += ": " + mwe.Error()
	}
	w.Header().Set(middleware.ExportWarningHeader, msg)
}

// --- mapping helpers --------------------------------------------------------

func requestToVisitor(body createVisitorRequest) domain.Visitor {
	v := domain.Visitor{
		Name:      body.Name,
		Phone:     body.Phone,
		Email:     body.Email,
		Date:      body.Date,
		Purpose:   body.Purpose,
		MeetsWhom: body.MeetsWhom,
	}
	if body.Comments != nil {
		v.Comments = *body.Comments
	}
	return v
}

func visitorToResponse(v domain.Visitor) visitorResponse {
	return visitorResponse{
		ID:        v.ID,
		Name:      v.Name,
		Phone:     v.Phone,
		Email:     v.Email,
		Date:      v.Date,
		Purpose:   v.Purpose,
		MeetsWhom: v.MeetsWhom,
		Comments:  v.Comments,
		CreatedAt: v.CreatedAt.UTC().Format(domain.TimestampLayout),
	}
}
