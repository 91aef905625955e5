package web

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/voucherdash/internal/backend"
	"github.com/JonMunkholm/voucherdash/internal/logging"
	"github.com/JonMunkholm/voucherdash/internal/session"
	"github.com/JonMunkholm/voucherdash/internal/voucher"
	"github.com/JonMunkholm/voucherdash/internal/web/templates"
)

// sessionRejected clears the session and sends the user to log in again
// when the backend refused the credential. It reports whether it did.
func (s *Server) sessionRejected(w http.ResponseWriter, r *http.Request, err error) bool {
	if !backend.IsUnauthorized(err) {
		return false
	}
	logging.FromContext(r.Context()).Info("backend rejected session")
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login?from="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
	return true
}

// handleVoucherList renders one page of vouchers.
func (s *Server) handleVoucherList(w http.ResponseWriter, r *http.Request) {
	params := voucher.ParseListParams(r.URL.Query())
	s.renderList(w, r, params, flashMessages[r.URL.Query().Get("done")], "", http.StatusOK)
}

func (s *Server) renderList(w http.ResponseWriter, r *http.Request, params voucher.ListParams, flash, errMsg string, status int) {
	ctx := r.Context()
	view := templates.VoucherListParams{
		Params: params,
		Flash:  flash,
		Error:  errMsg,
		Now:    time.Now(),
	}

	page, err := s.api.ListVouchers(ctx, session.Credential(ctx), params)
	if err != nil {
		if s.sessionRejected(w, r, err) {
			return
		}
		logging.FromContext(ctx).Warn("list vouchers failed", "error", err)
		if view.Error == "" {
			view.Error = backend.Message(err, "Failed to fetch vouchers")
			status = backendStatus(err)
		}
	} else {
		view.Page = page
	}

	render(w, r, status, templates.VoucherListPage(view))
}

func formInput(r *http.Request) voucher.FormInput {
	return voucher.FormInput{
		VoucherCode:     r.PostForm.Get("voucher_code"),
		DiscountPercent: r.PostForm.Get("discount_percent"),
		ExpiryDate:      r.PostForm.Get("expiry_date"),
	}
}

func newVoucherForm(in voucher.FormInput) templates.VoucherFormParams {
	return templates.VoucherFormParams{
		Title:  "New voucher",
		Action: "/vouchers",
		Submit: "Create",
		Input:  in,
	}
}

func editVoucherForm(id string, in voucher.FormInput) templates.VoucherFormParams {
	return templates.VoucherFormParams{
		Title:  "Edit voucher",
		Action: "/vouchers/" + url.PathEscape(id),
		Submit: "Save",
		Input:  in,
	}
}

// handleVoucherNew renders an empty create form.
func (s *Server) handleVoucherNew(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, templates.VoucherFormPage(newVoucherForm(voucher.FormInput{})))
}

// handleVoucherCreate validates the form and creates the voucher.
func (s *Server) handleVoucherCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := formInput(r)
	s.saveVoucher(w, r, newVoucherForm(in), "created", func(p voucher.Payload) error {
		return s.api.CreateVoucher(r.Context(), session.Credential(r.Context()), p)
	})
}

// handleVoucherEdit loads a voucher into the edit form.
func (s *Server) handleVoucherEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	v, err := s.api.GetVoucher(ctx, session.Credential(ctx), id)
	if err != nil {
		if s.sessionRejected(w, r, err) {
			return
		}
		logging.FromContext(ctx).Warn("get voucher failed", "voucher_id", id, "error", err)
		form := editVoucherForm(id, voucher.FormInput{})
		form.Error = backend.Message(err, "Failed to fetch voucher details")
		render(w, r, backendStatus(err), templates.VoucherFormPage(form))
		return
	}

	render(w, r, http.StatusOK, templates.VoucherFormPage(editVoucherForm(id, voucher.FromVoucher(v))))
}

// handleVoucherUpdate validates the form and updates the voucher.
func (s *Server) handleVoucherUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in := formInput(r)
	s.saveVoucher(w, r, editVoucherForm(id, in), "updated", func(p voucher.Payload) error {
		return s.api.UpdateVoucher(r.Context(), session.Credential(r.Context()), id, p)
	})
}

// saveVoucher is the shared create/update path: validate, call the backend,
// and either redirect to the list or re-render the form with the error.
func (s *Server) saveVoucher(w http.ResponseWriter, r *http.Request, form templates.VoucherFormParams, done string, save func(voucher.Payload) error) {
	payload, err := form.Input.Validate()
	if err != nil {
		var ve *voucher.ValidationError
		if errors.As(err, &ve) {
			form.Field = ve.Field
		}
		form.Error = err.Error()
		render(w, r, http.StatusUnprocessableEntity, templates.VoucherFormPage(form))
		return
	}

	if err := save(payload); err != nil {
		if s.sessionRejected(w, r, err) {
			return
		}
		logging.FromContext(r.Context()).Warn("save voucher failed", "action", done, "error", err)
		fallback := "Failed to create voucher. Please try again."
		if done == "updated" {
			fallback = "Failed to update voucher. Please try again."
		}
		form.Error = backend.Message(err, fallback)
		render(w, r, backendStatus(err), templates.VoucherFormPage(form))
		return
	}

	logging.FromContext(r.Context()).Info("voucher saved", "action", done, "voucher_code", payload.VoucherCode)
	http.Redirect(w, r, "/vouchers?done="+done, http.StatusSeeOther)
}

// handleVoucherDelete deletes a voucher and returns to the list.
func (s *Server) handleVoucherDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.api.DeleteVoucher(ctx, session.Credential(ctx), id); err != nil {
		if s.sessionRejected(w, r, err) {
			return
		}
		logging.FromContext(ctx).Warn("delete voucher failed", "voucher_id", id, "error", err)
		msg := backend.Message(err, "Failed to delete voucher. Please try again.")
		s.renderList(w, r, voucher.DefaultListParams(), "", msg, backendStatus(err))
		return
	}

	logging.FromContext(ctx).Info("voucher deleted", "voucher_id", id)
	http.Redirect(w, r, "/vouchers?done=deleted", http.StatusSeeOther)
}

// handleExport streams the backend's CSV export as a dated attachment.
// Backend failures pass through with their status and text.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	export, err := s.api.ExportVouchers(ctx, session.Credential(ctx))
	if err != nil {
		logging.FromContext(ctx).Warn("export vouchers failed", "error", err)
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			http.Error(w, apiErr.Message, apiErr.Status)
			return
		}
		http.Error(w, backend.Message(err, "Failed to export vouchers."), http.StatusBadGateway)
		return
	}
	defer export.Body.Close()

	filename := "vouchers-" + time.Now().Format(voucher.DateLayout) + ".csv"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	n, err := io.Copy(w, export.Body)
	if err != nil {
		logging.FromContext(ctx).Error("export stream interrupted", "bytes", n, "error", err)
		return
	}
	logging.FromContext(ctx).Info("vouchers exported", "bytes", n)
}
