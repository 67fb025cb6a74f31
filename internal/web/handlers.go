package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/web/templates"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.UploadPage().Render(r.Context(), w)
}

// handleImport runs an import on a multipart "file" field or on a raw text
// body. The body is streamed into the importer without being buffered.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	ctx := WithRequestMetadata(r.Context(), r)

	var (
		input any
		name  string
		size  int64
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			s.respondError(w, r, fmt.Errorf("parse form: %w", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			s.respondError(w, r, core.ErrNoFile)
			return
		}
		if err != nil {
			s.respondError(w, r, fmt.Errorf("read form file: %w", core.ErrInvalidInput))
			return
		}
		defer file.Close()
		input, name, size = file, header.Filename, header.Size

	case r.ContentLength == 0:
		s.respondError(w, r, core.ErrNoFile)
		return

	default:
		name = r.URL.Query().Get("name")
		if name == "" {
			name = "upload.txt"
		}
		input, size = r.Body, max(r.ContentLength, 0)
	}

	run, err := s.service.Import(ctx, name, input, size)
	if err != nil {
		if run != nil && isHTMX(r) {
			s.renderSummary(w, r, run, statusFor(err))
			return
		}
		runID := ""
		if run != nil {
			runID = run.ID
		}
		s.respondRunError(w, r, err, runID)
		return
	}

	if isHTMX(r) || prefersHTML(r) {
		s.renderSummary(w, r, run, http.StatusCreated)
		return
	}
	w.Header().Set("Location", "/api/imports/"+run.ID)
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListRuns())
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) || prefersHTML(r) {
		s.renderSummary(w, r, run, http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStoreImport(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.StoreRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<p class="saved">Saved %d new contacts and %d new tags.</p>`,
			res.ContactsInserted, res.TagsInserted)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// storeRequest is the body of POST /api/contacts.
type storeRequest struct {
	Contacts []importer.Contact `json:"contacts"`
	Tags     []string           `json:"tags"`
}

func (s *Server) handleStoreContacts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode contacts: %v: %w", err, core.ErrInvalidInput))
		return
	}
	for i, c := range req.Contacts {
		if strings.TrimSpace(c.Email) == "" {
			s.respondError(w, r, fmt.Errorf("contact %d has no email: %w", i, core.ErrInvalidInput))
			return
		}
	}

	res, err := s.service.Store(r.Context(), req.Contacts, req.Tags)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActiveContacts(w http.ResponseWriter, r *http.Request) {
	emails := r.URL.Query()["email"]
	if len(emails) == 0 {
		s.respondError(w, r, fmt.Errorf("no email given: %w", core.ErrInvalidInput))
		return
	}

	contacts, err := s.service.ActiveContacts(r.Context(), emails)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database"`
	Imports  core.LimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Imports:  s.service.UploadLimiterStatus(),
	}
	status := http.StatusOK

	switch err := s.service.Ping(r.Context()); {
	case errors.Is(err, core.ErrStoreDisabled):
		resp.Database = "disabled"
	case err != nil:
		resp.Status, resp.Database = "degraded", "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

func (s *Server) renderSummary(w http.ResponseWriter, r *http.Request, run *core.ImportRun, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.ImportSummary(run).Render(r.Context(), w)
}

// prefersHTML reports whether a browser navigation asked for the page.
func prefersHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
