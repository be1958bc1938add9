package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-analyst/server/internal/agent/graph/tools"
	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/analyst"
	"github.com/retail-analyst/server/internal/analytics"
	"github.com/retail-analyst/server/internal/dataset"
)

const retailCSV = `Date,Customer_Name,Total_Items,Total_Cost,Store_Type
2023-01-01,Ann,1,10,Mall
2023-02-01,Bob,2,20,Kiosk
`

type stubReasoner struct {
	fail bool
	last model.QueryInput
}

func (s *stubReasoner) Reason(_ context.Context, in model.QueryInput) (string, error) {
	s.last = in
	if s.fail {
		return "", errors.New("connection reset by peer")
	}
	return "answer: " + in.Query, nil
}

type fixture struct {
	handler  http.Handler
	reasoner *stubReasoner
	path     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0o600))
	store, err := dataset.OpenStore(path)
	require.NoError(t, err)

	catalog, err := tools.NewCatalog(context.Background(), store, analytics.NewCatalog(analytics.DefaultThresholds()))
	require.NoError(t, err)

	r := &stubReasoner{}
	a := analyst.New(r, analyst.Config{})
	srv := New(Config{AllowedOrigins: []string{"*"}}, Deps{
		Facades: analyst.NewFacades(analyst.NewCachedAnalyst(a, 16, 0)),
		Analyst: a,
		Tools:   catalog,
		Store:   store,
	})
	return &fixture{handler: srv.Routes(), reasoner: r, path: path}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Detail
}

func TestAnalyzeCannedType(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/analyze", `{"analysis_type":"seasonal"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "answer: What are the seasonal trends in our sales data?", resp.Result)
}

func TestAnalyzeCustomQuestion(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/analyze", `{"analysis_type":"custom"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "custom question is required")

	rec = f.do(t, http.MethodPost, "/analyze", `{"analysis_type":"custom","custom_question":"Top item in Chicago?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analyst.DefaultConversationID, f.reasoner.last.ConversationID)

	rec = f.do(t, http.MethodPost, "/analyze", `{"analysis_type":"custom","custom_question":"And in Boston?","conversation_id":"c-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-1", f.reasoner.last.ConversationID)
}

func TestAnalyzeErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/analyze", `{"analysis_type":"astrology"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/analyze", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.reasoner.fail = true
	rec = f.do(t, http.MethodPost, "/analyze", `{"analysis_type":"promotion"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "analysis failed", detail(t, rec))
}

func TestToolsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []toolDescription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 11)

	rec = f.do(t, http.MethodPost, "/tools/customer_lifetime_value", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Bob"`)

	rec = f.do(t, http.MethodPost, "/tools/promotion_effectiveness", "{}")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "column_not_found")

	rec = f.do(t, http.MethodPost, "/tools/seasonal_trends", `{"variant":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/tools/nope", "{}")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthConversationsAndReload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":2`)

	rec = f.do(t, http.MethodPost, "/conversations", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Len(t, conv["conversation_id"], 36)

	require.NoError(t, os.WriteFile(f.path, []byte(retailCSV+"2023-03-01,Cat,3,30,Mall\n"), 0o600))
	rec = f.do(t, http.MethodPost, "/dataset/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":3`)

	require.NoError(t, os.Remove(f.path))
	rec = f.do(t, http.MethodPost, "/dataset/reload", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Contains(t, rec.Body.String(), `"rows":3`)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
