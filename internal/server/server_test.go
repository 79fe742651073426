package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/logging"
	"github.com/ginjaninja78/gradesum/internal/metrics"
	"github.com/ginjaninja78/gradesum/internal/session"
	"github.com/ginjaninja78/gradesum/internal/testutil"
	"github.com/ginjaninja78/gradesum/internal/xlsxparser"
	"github.com/ginjaninja78/gradesum/internal/xlsxwriter"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	mgr := session.NewManager(cfg, logging.Discard(), m)
	srv := New(mgr, cfg.Server, reg, logging.Discard())
	return &testServer{t: t, handler: srv.Routes()}
}

func (ts *testServer) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createSession() string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/sessions", nil, "")
	require.Equal(ts.t, http.StatusCreated, rec.Code)

	var st session.Status
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(ts.t, session.StateNoData, st.State)
	return st.ID
}

func (ts *testServer) upload(id string, files map[string][]byte) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(ts.t, err)
		_, err = part.Write(data)
		require.NoError(ts.t, err)
	}
	require.NoError(ts.t, mw.Close())
	return ts.do(http.MethodPost, "/api/sessions/"+id+"/files", &buf, mw.FormDataContentType())
}

func (ts *testServer) putSelection(id, what, body string) *httptest.ResponseRecorder {
	ts.t.Helper()
	return ts.do(http.MethodPut, "/api/sessions/"+id+"/"+what, strings.NewReader(body), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func gradeFile(t *testing.T) []byte {
	return testutil.GradeWorkbook(t,
		testutil.Record("2023Χ", "ΜΑΘ101", "2021004512", 7.5),
		testutil.Record("2023Χ", "ΦΥΣ102", "2022000001", 3),
		testutil.Record("2023Ε", "ΜΑΘ101", "2023001234", "Α"),
	)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.createSession()

	rec := ts.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["sessions"])

	rec = ts.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gradesum_live_sessions 1")
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/sessions/00000000-0000-0000-0000-000000000000", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[APIError](t, rec).ErrorCode)

	rec = ts.do(http.MethodGet, "/api/sessions/garbage/periods", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotReadyBeforeUpload(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	for _, path := range []string{"/periods", "/preview", "/summaries/course"} {
		rec := ts.do(http.MethodGet, "/api/sessions/"+id+path, nil, "")
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
}

func TestFullDrillDown(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	rec := ts.upload(id, map[string][]byte{"grades.xlsx": gradeFile(t)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ingest := decode[session.Status](t, rec)
	assert.Equal(t, session.StateReady, ingest.State)
	assert.Equal(t, 3, ingest.Rows)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/preview?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/summaries/course", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.ViewAwaiting, decode[session.View](t, rec).State)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/courses", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.putSelection(id, "periods", `{"values":["2023Χ"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	periods := decode[selectionResponse](t, rec)
	assert.Equal(t, []string{"2023Ε", "2023Χ"}, periods.Options)
	assert.Equal(t, []string{"2023Χ"}, periods.Selected)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/summaries/course", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[session.View](t, rec)
	require.Equal(t, session.ViewReady, view.State)
	require.Len(t, view.Summary.Rows, 2)
	assert.Equal(t, "ΜΑΘ101", view.Summary.Rows[0].Key)

	rec = ts.putSelection(id, "courses", `{"values":["ΜΑΘ101"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/summaries/cohort", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cohort := decode[session.View](t, rec)
	require.Equal(t, session.ViewReady, cohort.State)
	assert.Equal(t, "202", cohort.Summary.Rows[0].Key)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/summaries/cohort/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxwriter.MIMEType, rec.Header().Get("Content-Type"))
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "summary_by_Έτος Εγγραφής_filtered.xlsx", params["filename"])

	rows, err := xlsxparser.ReadRows(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"202", "1", "1", "1"}, rows[1])
}

func TestSelectionErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	require.Equal(t, http.StatusOK, ts.upload(id, map[string][]byte{"g.xlsx": gradeFile(t)}).Code)

	rec := ts.putSelection(id, "periods", `{"values":["1999"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_SELECTION", decode[APIError](t, rec).ErrorCode)

	rec = ts.putSelection(id, "periods", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode[APIError](t, rec).ErrorCode)

	rec = ts.putSelection(id, "periods", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.putSelection(id, "courses", `{"values":["ΜΑΘ101"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/summaries/course/export", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/summaries/bogus", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id+"/preview?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFailures(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()

	rec := ts.upload(id, map[string][]byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_FILES", decode[APIError](t, rec).ErrorCode)

	rec = ts.upload(id, map[string][]byte{"broken.xlsx": []byte("nope")})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	st := decode[session.Status](t, rec)
	assert.Equal(t, session.StateFailed, st.State)
	require.Len(t, st.Files, 1)
	assert.Equal(t, "failed", string(st.Files[0].Outcome))
}

func TestResetAndDelete(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession()
	require.Equal(t, http.StatusOK, ts.upload(id, map[string][]byte{"g.xlsx": gradeFile(t)}).Code)

	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/reset", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateNoData, decode[session.Status](t, rec).State)

	rec = ts.do(http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
