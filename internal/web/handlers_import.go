package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/voucherdash/internal/core"
	"github.com/JonMunkholm/voucherdash/internal/history"
	"github.com/JonMunkholm/voucherdash/internal/logging"
	"github.com/JonMunkholm/voucherdash/internal/session"
	"github.com/JonMunkholm/voucherdash/internal/web/templates"
)

const (
	// longPollTimeout bounds ?wait=1. A pending snapshot is returned when it
	// elapses and the client polls again.
	longPollTimeout = 25 * time.Second

	// multipartOverhead is allowed on top of the file size limit for the
	// form boundary and part headers.
	multipartOverhead = 64 << 10

	importPageHistory = 10
)

var errFileTooLarge = errors.New("file too large")

// owner identifies the session that owns import flows.
func owner(r *http.Request) string {
	return session.Fingerprint(session.Credential(r.Context()))
}

// respondSnapshot writes a flow snapshot as JSON, or as the status fragment
// for the import page. X-Import-Pending tells the page to long-poll.
func respondSnapshot(w http.ResponseWriter, r *http.Request, status int, snap core.Snapshot) {
	w.Header().Set("X-Import-Pending", strconv.FormatBool(snap.Pending))
	if wantsFragment(r) {
		render(w, r, status, templates.ImportStatus(snap))
		return
	}
	writeJSON(w, r, status, snap)
}

// flowStatus maps service errors to HTTP status codes.
func flowStatus(err error) int {
	if errors.Is(err, core.ErrFlowNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// handleImportPage renders the import screen with a fresh flow.
func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.imports.NewFlow(owner(r))

	snap, err := s.imports.Snapshot(id, owner(r))
	if err != nil {
		respondError(w, r, err, flowStatus(err))
		return
	}

	attempts, err := s.imports.RecentImports(ctx, importPageHistory)
	if err != nil {
		logging.FromContext(ctx).Error("load import history failed", "error", err)
	}

	render(w, r, http.StatusOK, templates.ImportPage(templates.ImportPageParams{
		FlowID:      id,
		MaxFileSize: int64(s.cfg.Upload.MaxFileSize),
		Status:      snap,
		History:     attempts,
	}))
}

// handleImportNew starts a flow for API clients.
func (s *Server) handleImportNew(w http.ResponseWriter, r *http.Request) {
	id := s.imports.NewFlow(owner(r))
	snap, err := s.imports.Snapshot(id, owner(r))
	if err != nil {
		respondError(w, r, err, flowStatus(err))
		return
	}
	logging.WithFields(r.Context(), "flow_id", id).Debug("import flow created")
	respondSnapshot(w, r, http.StatusCreated, snap)
}

// handleImportGet returns a flow snapshot. With ?wait=1 it blocks until the
// flow has no submission in flight or the long-poll window ends.
func (s *Server) handleImportGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "flowID")

	if r.URL.Query().Get("wait") != "1" {
		snap, err := s.imports.Snapshot(id, owner(r))
		if err != nil {
			respondError(w, r, err, flowStatus(err))
			return
		}
		respondSnapshot(w, r, http.StatusOK, snap)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), longPollTimeout)
	defer cancel()

	snap, err := s.imports.Wait(ctx, id, owner(r))
	if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
		snap, err = s.imports.Snapshot(id, owner(r))
	}
	if err != nil {
		if r.Context().Err() != nil {
			return // client went away
		}
		respondError(w, r, err, flowStatus(err))
		return
	}
	respondSnapshot(w, r, http.StatusOK, snap)
}

// handleImportFile reads the multipart "file" field and selects it.
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "flowID")
	limit := int64(s.cfg.Upload.MaxFileSize)

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, limit), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("parse form: %w", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > limit {
		respondError(w, r, fmt.Errorf("%w: %d bytes, limit %d", errFileTooLarge, header.Size, limit), http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	snap, err := s.imports.SelectFile(r.Context(), id, owner(r), core.RawFile{Name: header.Filename, Data: data})
	if err != nil {
		respondError(w, r, err, flowStatus(err))
		return
	}
	respondSnapshot(w, r, http.StatusOK, snap)
}

// handleImportClear drops the selected file.
func (s *Server) handleImportClear(w http.ResponseWriter, r *http.Request) {
	snap, err := s.imports.ClearFile(r.Context(), chi.URLParam(r, "flowID"), owner(r))
	if err != nil {
		respondError(w, r, err, flowStatus(err))
		return
	}
	respondSnapshot(w, r, http.StatusOK, snap)
}

// handleImportSubmit starts relaying the selected file. It answers 202 with
// a pending snapshot, or 409 with the refusal notice in the snapshot.
func (s *Server) handleImportSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "flowID")
	credential := session.Credential(r.Context())

	snap, err := s.imports.Submit(withClientInfo(r), id, session.Fingerprint(credential), credential)
	switch {
	case errors.Is(err, core.ErrSubmitRefused):
		logging.WithFields(r.Context(), "flow_id", id).Info("import submission refused", "notice", snap.Notice)
		respondSnapshot(w, r, http.StatusConflict, snap)
	case err != nil:
		respondError(w, r, err, flowStatus(err))
	default:
		respondSnapshot(w, r, http.StatusAccepted, snap)
	}
}

// handleImportCancel aborts the in-flight submission.
func (s *Server) handleImportCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "flowID")

	if err := s.imports.Cancel(id, owner(r)); err != nil {
		status := http.StatusConflict
		if errors.Is(err, core.ErrFlowNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return
	}

	snap, err := s.imports.Snapshot(id, owner(r))
	if err != nil {
		respondError(w, r, err, flowStatus(err))
		return
	}
	respondSnapshot(w, r, http.StatusAccepted, snap)
}

// handleImportHistory lists recent import attempts.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", history.DefaultRecentLimit)

	attempts, err := s.imports.RecentImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, fmt.Errorf("load import history: %w", err), http.StatusInternalServerError)
		return
	}
	if attempts == nil {
		attempts = []core.ImportAttempt{}
	}

	if wantsFragment(r) {
		render(w, r, http.StatusOK, templates.ImportHistory(attempts))
		return
	}
	writeJSON(w, r, http.StatusOK, attempts)
}

// handleImportQueue reports relay slot usage.
func (s *Server) handleImportQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.imports.SubmitLimiterStatus())
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":       "ok",
		"import_flows": s.imports.FlowCount(),
	})
}
