package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/voucherdash/internal/backend"
	"github.com/JonMunkholm/voucherdash/internal/config"
	"github.com/JonMunkholm/voucherdash/internal/core"
	"github.com/JonMunkholm/voucherdash/internal/history"
	"github.com/JonMunkholm/voucherdash/internal/session"
	"github.com/JonMunkholm/voucherdash/internal/voucher"
)

const testToken = "tok-123"

type fakeBackend struct {
	mu sync.Mutex

	token    string
	loginErr error

	page     voucher.Page
	listErr  error
	lastList voucher.ListParams

	voucher voucher.Voucher
	getErr  error

	created   []voucher.Payload
	createErr error
	updated   map[string]voucher.Payload
	deleted   []string
	deleteErr error

	exportBody string
	exportErr  error
}

func (f *fakeBackend) Login(_ context.Context, in backend.LoginInput) (string, error) {
	return f.token, f.loginErr
}

func (f *fakeBackend) ListVouchers(_ context.Context, credential string, p voucher.ListParams) (voucher.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = p
	return f.page, f.listErr
}

func (f *fakeBackend) GetVoucher(_ context.Context, credential, id string) (voucher.Voucher, error) {
	return f.voucher, f.getErr
}

func (f *fakeBackend) CreateVoucher(_ context.Context, credential string, p voucher.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakeBackend) UpdateVoucher(_ context.Context, credential, id string, p voucher.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[string]voucher.Payload{}
	}
	f.updated[id] = p
	return nil
}

func (f *fakeBackend) DeleteVoucher(_ context.Context, credential, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) ExportVouchers(_ context.Context, credential string) (*backend.Export, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return &backend.Export{Body: io.NopCloser(strings.NewReader(f.exportBody)), ContentType: "text/csv"}, nil
}

type stubSubmitter struct {
	report *core.IngestionReport
	err    error
}

func (s *stubSubmitter) ImportVouchers(ctx context.Context, credential string, file core.RawFile) (*core.IngestionReport, error) {
	if credential == "" {
		return nil, core.ErrUnauthorized
	}
	return s.report, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 10 * time.Second},
		Session: config.SessionConfig{MaxAge: time.Hour},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       5 * time.Second,
			FlowTTL:       time.Hour,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, api *fakeBackend, sub core.Submitter) *Server {
	t.Helper()
	if sub == nil {
		sub = &stubSubmitter{report: &core.IngestionReport{
			Success: true,
			Message: "Imported",
			Summary: core.IngestionSummary{SuccessCount: 1},
		}}
	}
	cfg := testConfig()
	svc := core.NewService(sub, history.NewMemoryStore(10), core.ServiceConfig{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		SubmitTimeout: cfg.Upload.Timeout,
		FlowTTL:       cfg.Upload.FlowTTL,
	})
	srv := NewServer(cfg, api, svc)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		svc.WaitForSubmissions(context.Background())
	})
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func fileRequest(t *testing.T, target, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) core.Snapshot {
	t.Helper()
	var snap core.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (body %q)", err, rec.Body.String())
	}
	return snap
}

func TestRoutes_RequireSession(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	tests := []struct {
		method, target string
		wantStatus     int
		wantLocation   string
	}{
		{http.MethodGet, "/vouchers", http.StatusSeeOther, "/login?from=%2Fvouchers"},
		{http.MethodGet, "/vouchers/import", http.StatusSeeOther, "/login?from=%2Fvouchers%2Fimport"},
		{http.MethodGet, "/vouchers/export", http.StatusUnauthorized, ""},
		{http.MethodPost, "/api/import", http.StatusUnauthorized, ""},
		{http.MethodGet, "/api/import/history", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(srv, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" && rec.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLocation)
			}
		})
	}
}

func TestRoot_RedirectsToVouchers(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)
	rec := do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/vouchers" {
		t.Errorf("got %d to %q, want 303 to /vouchers", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name         string
		api          *fakeBackend
		form         url.Values
		wantStatus   int
		wantLocation string
		wantBody     string
		wantCookie   bool
	}{
		{
			name:         "success returns to from",
			api:          &fakeBackend{token: testToken},
			form:         url.Values{"email": {"a@b.co"}, "password": {"pw"}, "from": {"/vouchers/import"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/vouchers/import",
			wantCookie:   true,
		},
		{
			name:         "external from is ignored",
			api:          &fakeBackend{token: testToken},
			form:         url.Values{"email": {"a@b.co"}, "password": {"pw"}, "from": {"//evil.example/x"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/vouchers",
			wantCookie:   true,
		},
		{
			name:       "missing email",
			api:        &fakeBackend{},
			form:       url.Values{"password": {"pw"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "Email is required",
		},
		{
			name:       "bad credentials",
			api:        &fakeBackend{loginErr: &backend.APIError{Status: 400, Message: backend.MsgBadCredentials}},
			form:       url.Values{"email": {"a@b.co"}, "password": {"wrong"}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   backend.MsgBadCredentials,
		},
		{
			name:       "backend unreachable",
			api:        &fakeBackend{loginErr: errors.New("dial tcp: connection refused")},
			form:       url.Values{"email": {"a@b.co"}, "password": {"pw"}},
			wantStatus: http.StatusBadGateway,
			wantBody:   backend.MsgUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.api, nil)
			rec := do(srv, formRequest("/login", tt.form))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantLocation != "" && rec.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLocation)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}

			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == session.CookieName {
					cookie = c
				}
			}
			if tt.wantCookie {
				if cookie == nil || cookie.Value != testToken || !cookie.HttpOnly {
					t.Errorf("session cookie = %+v, want httpOnly %q", cookie, testToken)
				}
			} else if cookie != nil {
				t.Errorf("unexpected session cookie %+v", cookie)
			}
		})
	}
}

func TestLoginPage(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	t.Run("signed in users go home", func(t *testing.T) {
		rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/login", nil), testToken))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/vouchers" {
			t.Errorf("got %d to %q, want 303 to /vouchers", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("keeps a safe from", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest(http.MethodGet, "/login?from=%2Fvouchers%3Fpage%3D2", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `name="from" value="/vouchers?page=2"`) {
			t.Errorf("from not carried into form: %s", rec.Body.String())
		}
	})
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)
	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), testToken))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d to %q, want 303 to /login", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookie not cleared: %+v", cookies)
	}
}

func TestVoucherList(t *testing.T) {
	api := &fakeBackend{page: voucher.Page{
		Total: 1,
		Vouchers: []voucher.Voucher{{
			ID:              "v1",
			VoucherCode:     "<SPRING10>",
			DiscountPercent: decimal.NewFromInt(10),
			ExpiryDate:      "2000-01-01",
		}},
	}}
	srv := newTestServer(t, api, nil)

	req := withSession(httptest.NewRequest(http.MethodGet, "/vouchers?search=spring&sort_by=discount_percent&sort_order=desc&done=created", nil), testToken)
	rec := do(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"&lt;SPRING10&gt;", "Expired", "Voucher created.", "/vouchers/v1/edit"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "<SPRING10>") {
		t.Error("voucher code was not escaped")
	}

	api.mu.Lock()
	got := api.lastList
	api.mu.Unlock()
	if got.Search != "spring" || got.SortBy != voucher.SortDiscountPercent || got.SortOrder != voucher.OrderDesc {
		t.Errorf("list params = %+v", got)
	}
}

func TestVoucherList_BackendErrors(t *testing.T) {
	t.Run("rejected session logs out", func(t *testing.T) {
		srv := newTestServer(t, &fakeBackend{listErr: &backend.APIError{Status: 401, Message: "expired"}}, nil)
		rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/vouchers", nil), testToken))

		if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/login?from=") {
			t.Fatalf("got %d to %q, want redirect to login", rec.Code, rec.Header().Get("Location"))
		}
		if cookies := rec.Result().Cookies(); len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Errorf("cookie not cleared: %+v", cookies)
		}
	})

	t.Run("server message shown", func(t *testing.T) {
		srv := newTestServer(t, &fakeBackend{listErr: &backend.APIError{Status: 500, Message: "database down"}}, nil)
		rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/vouchers", nil), testToken))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
		}
		if !strings.Contains(rec.Body.String(), "database down") {
			t.Error("backend message not shown")
		}
	})
}

func TestVoucherCreate(t *testing.T) {
	valid := url.Values{"voucher_code": {"SAVE5"}, "discount_percent": {"5"}, "expiry_date": {"2030-06-01"}}

	t.Run("invalid form", func(t *testing.T) {
		api := &fakeBackend{}
		srv := newTestServer(t, api, nil)
		form := url.Values{"voucher_code": {"SAVE5"}, "discount_percent": {"150"}, "expiry_date": {"2030-06-01"}}
		rec := do(srv, withSession(formRequest("/vouchers", form), testToken))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Discount must be greater than 0 and at most 100") {
			t.Error("validation message missing")
		}
		if len(api.created) != 0 {
			t.Error("backend called for invalid form")
		}
	})

	t.Run("created", func(t *testing.T) {
		api := &fakeBackend{}
		srv := newTestServer(t, api, nil)
		rec := do(srv, withSession(formRequest("/vouchers", valid), testToken))

		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/vouchers?done=created" {
			t.Fatalf("got %d to %q", rec.Code, rec.Header().Get("Location"))
		}
		if len(api.created) != 1 || api.created[0].VoucherCode != "SAVE5" || api.created[0].DiscountPercent != "5" {
			t.Errorf("created = %+v", api.created)
		}
	})

	t.Run("backend refuses", func(t *testing.T) {
		api := &fakeBackend{createErr: &backend.APIError{Status: 409, Message: "Voucher code already exists"}}
		srv := newTestServer(t, api, nil)
		rec := do(srv, withSession(formRequest("/vouchers", valid), testToken))

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Voucher code already exists") {
			t.Error("backend message missing")
		}
	})
}

func TestVoucherEditAndUpdate(t *testing.T) {
	api := &fakeBackend{voucher: voucher.Voucher{
		ID:              "v 1",
		VoucherCode:     "SAVE5",
		DiscountPercent: decimal.RequireFromString("5.5"),
		ExpiryDate:      "2030-06-01T00:00:00Z",
	}}
	srv := newTestServer(t, api, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/vouchers/v%201/edit", nil), testToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="2030-06-01"`) || !strings.Contains(body, `action="/vouchers/v%201"`) {
		t.Errorf("edit form not prefilled: %s", body)
	}

	form := url.Values{"voucher_code": {"SAVE6"}, "discount_percent": {"6"}, "expiry_date": {"2031-01-01"}}
	rec = do(srv, withSession(formRequest("/vouchers/v%201", form), testToken))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/vouchers?done=updated" {
		t.Fatalf("update got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
	if got := api.updated["v 1"]; got.VoucherCode != "SAVE6" {
		t.Errorf("updated = %+v", api.updated)
	}
}

func TestVoucherDelete(t *testing.T) {
	api := &fakeBackend{}
	srv := newTestServer(t, api, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/vouchers/v1/delete", nil), testToken))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/vouchers?done=deleted" {
		t.Fatalf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
	if len(api.deleted) != 1 || api.deleted[0] != "v1" {
		t.Errorf("deleted = %v", api.deleted)
	}
}

func TestExport(t *testing.T) {
	t.Run("attachment", func(t *testing.T) {
		srv := newTestServer(t, &fakeBackend{exportBody: "voucher_code\nA\n"}, nil)
		rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/vouchers/export", nil), testToken))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		want := `attachment; filename="vouchers-` + time.Now().Format("2006-01-02") + `.csv"`
		if got := rec.Header().Get("Content-Disposition"); got != want {
			t.Errorf("Content-Disposition = %q, want %q", got, want)
		}
		if rec.Body.String() != "voucher_code\nA\n" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("backend failure passes through", func(t *testing.T) {
		srv := newTestServer(t, &fakeBackend{exportErr: &backend.APIError{Status: 503, Message: "export disabled"}}, nil)
		rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/vouchers/export", nil), testToken))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "export disabled") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})
}

func TestImportAPI_HappyPath(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	if rec.Code != http.StatusCreated {
		t.Fatalf("new flow status = %d", rec.Code)
	}
	flowID := decodeSnapshot(t, rec).FlowID
	base := "/api/import/" + flowID

	csv := []byte("Voucher_Code,discount_percent,expiry_date\nABC10,10,2030-01-01\n")
	rec = do(srv, withSession(fileRequest(t, base+"/file", "vouchers.csv", csv), testToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d (%s)", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if snap.HeaderValid == nil || !*snap.HeaderValid || snap.DataRows != 1 || !snap.CanSubmit {
		t.Fatalf("snapshot after select = %+v", snap)
	}
	if len(snap.Preview) != 1 || snap.Preview[0].LineNumber != 2 || snap.Preview[0].VoucherCode != "ABC10" {
		t.Errorf("preview = %+v", snap.Preview)
	}

	rec = do(srv, withSession(httptest.NewRequest(http.MethodPost, base+"/submit", nil), testToken))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Import-Pending") != "true" {
		t.Error("submit response not marked pending")
	}

	rec = do(srv, withSession(httptest.NewRequest(http.MethodGet, base+"?wait=1", nil), testToken))
	snap = decodeSnapshot(t, rec)
	if snap.State != core.StateSucceeded || snap.Pending {
		t.Fatalf("state after wait = %s pending=%v", snap.State, snap.Pending)
	}
	if snap.Result == nil || !snap.Result.Summary.AllSucceeded() {
		t.Errorf("result = %+v", snap.Result)
	}

	rec = do(srv, withSession(httptest.NewRequest(http.MethodGet, "/api/import/history?limit=5", nil), testToken))
	var attempts []core.ImportAttempt
	if err := json.Unmarshal(rec.Body.Bytes(), &attempts); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(attempts) != 1 || attempts[0].FlowID != flowID || attempts[0].FileName != "vouchers.csv" {
		t.Errorf("history = %+v", attempts)
	}
}

func TestImportAPI_SubmitRefused(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	flowID := decodeSnapshot(t, rec).FlowID

	rec = do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import/"+flowID+"/submit", nil), testToken))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.Notice != core.NoticeNoFile {
		t.Errorf("notice = %q, want %q", snap.Notice, core.NoticeNoFile)
	}
}

func TestImportAPI_InvalidHeaderFragment(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	flowID := decodeSnapshot(t, rec).FlowID

	req := fileRequest(t, "/api/import/"+flowID+"/file", "v.csv", []byte("code,discount_percent\nA,1\n"))
	req.Header.Set("Accept", "text/html")
	rec = do(srv, withSession(req, testToken))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html fragment", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Missing required header(s): voucher_code, expiry_date.") {
		t.Errorf("missing header message not rendered: %s", body)
	}
	if !strings.Contains(body, `data-action="submit" disabled`) {
		t.Error("upload button should be disabled")
	}
}

func TestImportAPI_PreviewIssuesFragment(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	flowID := decodeSnapshot(t, rec).FlowID

	csv := []byte("voucher_code,discount_percent,expiry_date\nA,250,2030-01-01\nB,5,2030-01-01\n")
	req := fileRequest(t, "/api/import/"+flowID+"/file", "v.csv", csv)
	req.Header.Set("Accept", "text/html")
	rec = do(srv, withSession(req, testToken))

	body := rec.Body.String()
	if strings.Count(body, `<tr class="warn">`) != 1 {
		t.Errorf("want exactly one highlighted row: %s", body)
	}
	if !strings.Contains(body, "Discount must be greater than 0 and at most 100") {
		t.Errorf("issue message not rendered: %s", body)
	}
	if strings.Contains(body, `data-action="submit" disabled`) {
		t.Error("preview issues must not disable the upload button")
	}
}

func TestImportAPI_OtherSessionCannotSeeFlow(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	flowID := decodeSnapshot(t, rec).FlowID

	rec = do(srv, withSession(httptest.NewRequest(http.MethodGet, "/api/import/"+flowID, nil), "someone-else"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var errResp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Code != "UPL003" {
		t.Errorf("code = %q, want UPL003", errResp.Code)
	}
}

func TestImportAPI_FileTooLarge(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	flowID := decodeSnapshot(t, rec).FlowID

	big := bytes.Repeat([]byte("a"), (1<<20)+1)
	rec = do(srv, withSession(fileRequest(t, "/api/import/"+flowID+"/file", "big.csv", big), testToken))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	var errResp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Code != "FILE001" {
		t.Errorf("code = %q, want FILE001", errResp.Code)
	}
}

func TestImportAPI_CancelWithoutSubmission(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)

	rec := do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import", nil), testToken))
	flowID := decodeSnapshot(t, rec).FlowID

	rec = do(srv, withSession(httptest.NewRequest(http.MethodPost, "/api/import/"+flowID+"/cancel", nil), testToken))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestImportPage(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)
	rec := do(srv, withSession(httptest.NewRequest(http.MethodGet, "/vouchers/import", nil), testToken))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-flow="`) || !strings.Contains(body, "No imports yet.") {
		t.Errorf("import page incomplete: %s", body)
	}
	if srv.imports.FlowCount() != 1 {
		t.Errorf("flows = %d, want 1", srv.imports.FlowCount())
	}
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)
	rec := do(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		from, want string
	}{
		{"", "/home"},
		{"/vouchers?page=2", "/vouchers?page=2"},
		{"//evil.example", "/home"},
		{`/\evil.example`, "/home"},
		{"https://evil.example/x", "/home"},
		{"vouchers", "/home"},
		{"/login?from=/x", "/home"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			if got := safeRedirect(tt.from, "/home"); got != tt.want {
				t.Errorf("safeRedirect(%q) = %q, want %q", tt.from, got, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{}, nil)
	rl := srv.newRateLimiter(2, time.Minute)

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other clients have their own budget")
	}

	h := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/import/history", nil)
	req.RemoteAddr = "1.2.3.4:999"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RATE001") {
		t.Errorf("body = %q, want RATE001", rec.Body.String())
	}
}
