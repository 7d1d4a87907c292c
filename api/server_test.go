package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/integrity.report/internal/db"
	"github.com/banshee-data/integrity.report/internal/httputil"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/notify"
	"github.com/banshee-data/integrity.report/internal/testutil"
)

type testEnv struct {
	srv     *httptest.Server
	mock    *httputil.MockHTTPClient
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.MigrateUp("../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	reconciler, err := ili.NewReconciler(ili.DefaultConfig())
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}

	mock := httputil.NewMockHTTPClient()
	notifier := notify.New("http://example.com/hook", mock)

	dataDir := t.TempDir()
	srv := httptest.NewServer(NewServer(database, reconciler, notifier, dataDir).ServeMux())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, mock: mock, dataDir: dataDir}
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dataDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *testEnv) createRun(t *testing.T, id, date string) {
	t.Helper()
	resp := e.postJSON(t, "/runs", map[string]string{"id": id, "inspection_date": date})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)
	resp.Body.Close()
}

// seedSurveys creates two runs with landmarks and defects via the
// ingest endpoint. Landmark offsets between the runs stay within drift.
func (e *testEnv) seedSurveys(t *testing.T) {
	t.Helper()
	e.createRun(t, "r1", "2019-06-01")
	e.createRun(t, "r2", "2024-06-01")

	lmA := e.writeCSV(t, "lm_a.csv",
		"id,position,kind\nL1,100,weld\nL2,500,weld\nL3,1000,weld\nL4,1500,valve\n")
	dfA := e.writeCSV(t, "df_a.csv",
		"id,position,clock,depth_pct,length,width,kind\n"+
			"D1,250,3.0,20,2.0,1.0,external_corrosion\n"+
			"D2,800,6.0,35,3.0,1.5,dent\n")
	lmB := e.writeCSV(t, "lm_b.csv",
		"id,position,kind\nM1,104,weld\nM2,505,weld\nM3,1010,weld\nM4,1512,valve\n")
	dfB := e.writeCSV(t, "df_b.csv",
		"id,position,clock,depth_pct,length,width,kind\n"+
			"E1,254,3.0,28,2.1,1.0,external_corrosion\n"+
			"E2,806,6.0,36,3.0,1.5,dent\n"+
			"E3,1200,9.0,15,1.0,0.5,crack\n")

	for _, req := range []map[string]string{
		{"run_id": "r1", "landmarks_path": lmA, "defects_path": dfA},
		{"run_id": "r2", "landmarks_path": lmB, "defects_path": dfB},
	} {
		resp := e.postJSON(t, "/ingest", req)
		testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
		resp.Body.Close()
	}
}

func TestVersionEndpoint(t *testing.T) {
	e := newTestEnv(t)
	resp := e.get(t, "/version")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)

	var v map[string]string
	decodeBody(t, resp, &v)
	if v["version"] == "" {
		t.Error("missing version field")
	}
}

func TestRunLifecycle(t *testing.T) {
	e := newTestEnv(t)

	e.createRun(t, "r1", "2019-06-01")

	resp := e.get(t, "/runs")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var runs []db.Run
	decodeBody(t, resp, &runs)
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("runs = %+v", runs)
	}

	// bad date format
	resp = e.postJSON(t, "/runs", map[string]string{"id": "r2", "inspection_date": "June 2019"})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
	resp.Body.Close()

	// missing id
	resp = e.postJSON(t, "/runs", map[string]string{"inspection_date": "2019-06-01"})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
	resp.Body.Close()
}

func TestIngestRejectsUnknownRun(t *testing.T) {
	e := newTestEnv(t)
	path := e.writeCSV(t, "lm.csv", "id,position,kind\nL1,0,weld\n")

	resp := e.postJSON(t, "/ingest", map[string]string{"run_id": "ghost", "landmarks_path": path})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
	resp.Body.Close()
}

func TestIngestRejectsPathOutsideDataDir(t *testing.T) {
	e := newTestEnv(t)
	e.createRun(t, "r1", "2019-06-01")

	outside := filepath.Join(t.TempDir(), "lm.csv")
	if err := os.WriteFile(outside, []byte("id,position,kind\nL1,0,weld\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := e.postJSON(t, "/ingest", map[string]string{"run_id": "r1", "landmarks_path": outside})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
	resp.Body.Close()
}

func TestReconcileEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	e.seedSurveys(t)

	resp := e.postJSON(t, "/reconcile", map[string]string{"run_a": "r1", "run_b": "r2"})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)

	var rr reconcileResponse
	decodeBody(t, resp, &rr)
	if rr.AlignmentID == "" {
		t.Fatal("missing alignment id")
	}
	if rr.Result.Alignment.MatchRate != 100 {
		t.Errorf("match rate = %g, want 100", rr.Result.Alignment.MatchRate)
	}
	if rr.Result.Matches == nil || rr.Result.Matches.Stats.Matched != 2 {
		t.Errorf("matches = %+v", rr.Result.Matches)
	}
	// E3 only exists in the later run
	foundNew := false
	for _, u := range rr.Result.Matches.Unmatched {
		if u.DefectID == "E3" && u.Reason == ili.UnmatchedNew {
			foundNew = true
		}
	}
	if !foundNew {
		t.Error("E3 not classified as new")
	}
	// gap derived from inspection dates, so growth is populated
	if len(rr.Result.Growth) == 0 {
		t.Error("expected growth records")
	}

	// webhook fired once
	if e.mock.RequestCount() != 1 {
		t.Errorf("webhook calls = %d, want 1", e.mock.RequestCount())
	}

	// stored results are readable back
	resp = e.get(t, "/alignment?run_a=r1&run_b=r2")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var al struct {
		AlignmentID string            `json:"alignment_id"`
		Pairs       []ili.MatchedPair `json:"pairs"`
	}
	decodeBody(t, resp, &al)
	if al.AlignmentID != rr.AlignmentID || len(al.Pairs) != 4 {
		t.Errorf("stored alignment = %+v", al)
	}

	resp = e.get(t, "/matches?run_a=r1&run_b=r2")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var ms struct {
		Matches   []ili.Match           `json:"matches"`
		Unmatched []ili.UnmatchedDefect `json:"unmatched"`
	}
	decodeBody(t, resp, &ms)
	if len(ms.Matches) != 2 {
		t.Errorf("stored matches = %+v", ms.Matches)
	}

	resp = e.get(t, "/growth?run_a=r1&run_b=r2")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var gr struct {
		Growth []ili.GrowthRecord `json:"growth"`
	}
	decodeBody(t, resp, &gr)
	if len(gr.Growth) != len(rr.Result.Growth) {
		t.Errorf("stored %d growth records, want %d", len(gr.Growth), len(rr.Result.Growth))
	}
}

func TestReconcileUnknownRun(t *testing.T) {
	e := newTestEnv(t)
	e.createRun(t, "r1", "2019-06-01")

	resp := e.postJSON(t, "/reconcile", map[string]string{"run_a": "r1", "run_b": "ghost"})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
	resp.Body.Close()
}

func TestAlignmentRequiresParams(t *testing.T) {
	e := newTestEnv(t)

	resp := e.get(t, "/alignment")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
	resp.Body.Close()

	resp = e.get(t, "/alignment?run_a=r1&run_b=r2")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
	resp.Body.Close()
}
