package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/ginjaninja78/gradesum/internal/converter"
	"github.com/ginjaninja78/gradesum/internal/session"
	"github.com/ginjaninja78/gradesum/internal/xlsxwriter"
)

// multipartMemory is the part of an upload kept in memory; the rest spills
// to temporary files.
const multipartMemory = 32 << 20

// selectionRequest is the body of PUT /periods and PUT /courses.
type selectionRequest struct {
	Values []string `json:"values" validate:"required,dive,max=512"`
}

// selectionResponse is the body of GET /periods and GET /courses.
type selectionResponse struct {
	Options  []string `json:"options"`
	Selected []string `json:"selected"`
}

// ingestResponse is the body of POST /files.
type ingestResponse struct {
	session.Status
	ProcessingTime string `json:"processing_time"`
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Create()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sess.Status())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, sessionFrom(r).Status())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(sessionFrom(r).ID()); err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	render.NoContent(w, r)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Reset()
	render.JSON(w, r, sess.Status())
}

// =============================================================================
// INGESTION
// =============================================================================

func (s *Server) uploadFiles(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		render.Render(w, r, badRequest("INVALID_UPLOAD", fmt.Sprintf("could not read upload: %v", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		render.Render(w, r, badRequest("NO_FILES", `no files in form field "files"`))
		return
	}

	sources := make([]converter.Source, len(headers))
	for i, fh := range headers {
		sources[i] = converter.Source{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	result := sess.Ingest(r.Context(), sources)

	resp := ingestResponse{
		Status:         sess.Status(),
		ProcessingTime: result.Stats.ProcessingTime.String(),
	}
	if result.Err != nil {
		s.logger.WarnContext(r.Context(), "upload rejected",
			slog.String("session", sess.ID()),
			slog.String("error", result.Err.Error()))
		render.Status(r, http.StatusUnprocessableEntity)
	}
	render.JSON(w, r, resp)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			render.Render(w, r, badRequest("INVALID_PARAMETER", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	rows, err := sessionFrom(r).Preview(limit)
	if err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, rows)
}

// =============================================================================
// SELECTIONS
// =============================================================================

func (s *Server) getPeriods(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	options, err := sess.PeriodOptions()
	if err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, selectionResponse{Options: options, Selected: sess.SelectedPeriods()})
}

func (s *Server) putPeriods(w http.ResponseWriter, r *http.Request) {
	values, ok := s.decodeSelection(w, r)
	if !ok {
		return
	}
	if err := sessionFrom(r).SelectPeriods(values); err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	s.getPeriods(w, r)
}

func (s *Server) getCourses(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	options, err := sess.CourseOptions()
	if err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, selectionResponse{Options: options, Selected: sess.SelectedCourses()})
}

func (s *Server) putCourses(w http.ResponseWriter, r *http.Request) {
	values, ok := s.decodeSelection(w, r)
	if !ok {
		return
	}
	if err := sessionFrom(r).SelectCourses(values); err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	s.getCourses(w, r)
}

// decodeSelection reads and validates a selectionRequest. It writes the
// error response itself and reports whether the caller should continue.
func (s *Server) decodeSelection(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req selectionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, badRequest("INVALID_REQUEST", fmt.Sprintf("invalid JSON body: %v", err)))
		return nil, false
	}
	if err := s.validate.Struct(req); err != nil {
		render.Render(w, r, newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed", err.Error()))
		return nil, false
	}
	return req.Values, true
}

// =============================================================================
// SUMMARIES
// =============================================================================

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	view, err := sessionFrom(r).View(session.Level(chi.URLParam(r, "level")))
	if err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) exportSummary(w http.ResponseWriter, r *http.Request) {
	data, name, err := sessionFrom(r).Export(session.Level(chi.URLParam(r, "level")))
	if err != nil {
		render.Render(w, r, toAPIError(err))
		return
	}

	w.Header().Set("Content-Type", xlsxwriter.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WarnContext(r.Context(), "export write failed", slog.String("error", err.Error()))
	}
}
