package httputil

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/banshee-data/integrity.report/internal/testutil"
)

func TestWriteJSON(t *testing.T) {
	rec := testutil.NewTestRecorder()
	WriteJSON(rec, http.StatusOK, map[string]int{"count": 3})

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var out map[string]int
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	if out["count"] != 3 {
		t.Errorf("payload = %v", out)
	}
}

func TestWriteJSONError(t *testing.T) {
	rec := testutil.NewTestRecorder()
	WriteJSONError(rec, http.StatusNotFound, "run not found")

	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	var out map[string]string
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	if out["error"] != "run not found" {
		t.Errorf("payload = %v", out)
	}
}

func TestStatusHelpers(t *testing.T) {
	rec := testutil.NewTestRecorder()
	MethodNotAllowed(rec)
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)

	rec = testutil.NewTestRecorder()
	BadRequest(rec, "missing run_a")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = testutil.NewTestRecorder()
	NotFound(rec, "no such alignment")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = testutil.NewTestRecorder()
	InternalServerError(rec, "boom")
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
}
