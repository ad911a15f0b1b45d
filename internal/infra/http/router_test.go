package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/importer"
	"github.com/Spok95/stone-stock/internal/report"
)

type fakeImporter struct {
	res     importer.Result
	err     error
	gotUser uuid.UUID
	gotData []byte
}

func (f *fakeImporter) Import(_ context.Context, userID uuid.UUID, data []byte) (importer.Result, error) {
	f.gotUser, f.gotData = userID, data
	return f.res, f.err
}

type fakeProgress struct {
	p  importer.Progress
	ok bool
}

func (f fakeProgress) Snapshot() (importer.Progress, bool) { return f.p, f.ok }

type fakeExporter struct{}

func (fakeExporter) Export(context.Context, uuid.UUID) (*report.Export, error) {
	return &report.Export{FileName: "Stock_Tranches_2026-01-02.xlsx", Data: []byte("PK"), Slabs: 1}, nil
}

type fakeMatcher struct{ got slabs.Requirement }

func (f *fakeMatcher) Find(_ context.Context, _ uuid.UUID, req slabs.Requirement) ([]slabs.MatchResult, error) {
	f.got = req
	return nil, nil
}

type fakePurger struct{}

func (fakePurger) DeleteAll(context.Context, uuid.UUID) (slabs.DeleteResult, error) {
	return slabs.DeleteResult{Success: true, DeletedCount: 7, Message: "7 tranche(s) supprimée(s)"}, nil
}

type fakeUsers struct{ ensured []uuid.UUID }

func (f *fakeUsers) Ensure(_ context.Context, id uuid.UUID) error {
	f.ensured = append(f.ensured, id)
	return nil
}

type fakeArchive struct{ imports, exports int }

func (f *fakeArchive) SaveImport(context.Context, uuid.UUID, string, []byte) { f.imports++ }
func (f *fakeArchive) SaveExport(context.Context, uuid.UUID, string, []byte) { f.exports++ }

type fakeLive struct{ user uuid.UUID }

func (f *fakeLive) Serve(w http.ResponseWriter, _ *http.Request, userID uuid.UUID) {
	f.user = userID
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type testEnv struct {
	router   http.Handler
	auth     *Auth
	user     uuid.UUID
	token    string
	importer *fakeImporter
	progress *fakeProgress
	matcher  *fakeMatcher
	archive  *fakeArchive
	users    *fakeUsers
	live     *fakeLive
}

func newEnv(t *testing.T, progress fakeProgress) *testEnv {
	t.Helper()
	e := &testEnv{
		auth:     NewAuth("test-secret"),
		user:     uuid.New(),
		importer: &fakeImporter{},
		progress: &progress,
		matcher:  &fakeMatcher{},
		archive:  &fakeArchive{},
		users:    &fakeUsers{},
		live:     &fakeLive{},
	}
	tok, err := e.auth.Issue(e.user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	e.token = tok
	e.router = NewRouter(RouterDeps{
		Auth:          e.auth,
		Importer:      e.importer,
		Progress:      e.progress,
		Exporter:      fakeExporter{},
		Matcher:       e.matcher,
		Purger:        fakePurger{},
		Users:         e.users,
		Archive:       e.archive,
		Live:          e.live,
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		ExposeMetrics: true,
	})
	return e
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "stock.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", path, rec.Code)
		}
	}
}

func TestAPIRequiresToken(t *testing.T) {
	e := newEnv(t, fakeProgress{})

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/progress", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}

	other, _ := NewAuth("other-secret").Issue(uuid.New(), time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/imports/progress", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token: status=%d", rec.Code)
	}

	expired, _ := e.auth.Issue(uuid.New(), -time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/api/imports/progress", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status=%d", rec.Code)
	}
}

func TestImportOK(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	e.importer.res = importer.Result{Added: 5, Skipped: 1, Errors: []string{"Ligne 3: matière manquante"}}

	rec := e.do(uploadRequest(t, []byte("xlsx-bytes")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var got importer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Added != 5 || got.Skipped != 1 || len(got.Errors) != 1 {
		t.Fatalf("result=%+v", got)
	}
	if e.importer.gotUser != e.user || string(e.importer.gotData) != "xlsx-bytes" {
		t.Fatal("importer got wrong input")
	}
	if len(e.users.ensured) != 1 || e.archive.imports != 1 {
		t.Fatalf("ensured=%d archived=%d", len(e.users.ensured), e.archive.imports)
	}
}

func TestImportErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{importer.ErrImportInProgress, http.StatusConflict},
		{&importer.HeaderError{Missing: []string{"Largeur"}}, http.StatusUnprocessableEntity},
		{importer.ErrUnreadable, http.StatusUnprocessableEntity},
		{importer.ErrTooManyUnits, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, c := range cases {
		e := newEnv(t, fakeProgress{})
		e.importer.err = c.err
		rec := e.do(uploadRequest(t, []byte("x")))
		if rec.Code != c.code {
			t.Fatalf("%v: status=%d", c.err, rec.Code)
		}
	}
}

func TestImportWithoutFile(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader("")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestProgress(t *testing.T) {
	idle := newEnv(t, fakeProgress{})
	if rec := idle.do(httptest.NewRequest(http.MethodGet, "/api/imports/progress", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("idle status=%d", rec.Code)
	}

	busy := newEnv(t, fakeProgress{ok: true, p: importer.Progress{Phase: importer.PhaseInserting, TotalUnits: 10, Processed: 4}})
	busy.progress.p.UserID = busy.user
	rec := busy.do(httptest.NewRequest(http.MethodGet, "/api/imports/progress", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"phase":"inserting"`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestProgressHiddenFromOtherUsers(t *testing.T) {
	e := newEnv(t, fakeProgress{ok: true, p: importer.Progress{
		UserID: uuid.New(),
		Phase:  importer.PhaseDone,
		Errors: []string{"Ligne 3: référence manquante"},
	}})
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/imports/progress", nil))
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestExport(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/exports/slabs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Stock_Tranches_2026-01-02.xlsx") {
		t.Fatalf("disposition=%q", cd)
	}
	if e.archive.exports != 1 {
		t.Fatal("export not archived")
	}
}

func TestCompatibleParsesQuery(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/slabs/compatible?length=300&width=150,5&material=Granit&tolerance=3", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	got := e.matcher.got
	if got.Length == nil || *got.Length != 300 || got.Width == nil || *got.Width != 150.5 {
		t.Fatalf("req=%+v", got)
	}
	if got.Thickness != nil || got.Material != "Granit" || got.Tolerance == nil || *got.Tolerance != 3 {
		t.Fatalf("req=%+v", got)
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/slabs/compatible?length=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad number: status=%d", rec.Code)
	}
}

func TestDeleteSlabs(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	rec := e.do(httptest.NewRequest(http.MethodDelete, "/api/slabs", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deleted_count":7`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestWebsocketAcceptsQueryToken(t *testing.T) {
	e := newEnv(t, fakeProgress{})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ws?token="+e.token, nil))
	if rec.Code != http.StatusSwitchingProtocols || e.live.user != e.user {
		t.Fatalf("status=%d user=%s", rec.Code, e.live.user)
	}
}
