package httputil

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/integrity.report/internal/testutil"
)

func TestMockClientReplaysQueuedResponses(t *testing.T) {
	m := NewMockHTTPClient().
		AddResponse(http.StatusCreated, `{"ok":true}`).
		AddResponse(http.StatusBadGateway, "upstream down")

	resp, err := m.Post("http://example.test/hook", "application/json", strings.NewReader(`{"a":1}`))
	testutil.AssertNoError(t, err)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}

	resp, err = m.Post("http://example.test/hook", "application/json", nil)
	testutil.AssertNoError(t, err)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadGateway)

	// Queue exhausted: default 200.
	resp, err = m.Post("http://example.test/hook", "application/json", nil)
	testutil.AssertNoError(t, err)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
}

func TestMockClientRecordsRequestBodies(t *testing.T) {
	m := NewMockHTTPClient()

	_, err := m.Post("http://example.test/hook", "application/json", strings.NewReader(`{"run":"r1"}`))
	testutil.AssertNoError(t, err)

	if m.RequestCount() != 1 {
		t.Fatalf("requests = %d, want 1", m.RequestCount())
	}
	if m.Bodies[0] != `{"run":"r1"}` {
		t.Errorf("recorded body = %q", m.Bodies[0])
	}
	if ct := m.Requests[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	// The request body must still be readable after recording.
	b, _ := io.ReadAll(m.Requests[0].Body)
	if string(b) != `{"run":"r1"}` {
		t.Errorf("restored body = %q", b)
	}
}

func TestMockClientErrorResponses(t *testing.T) {
	queued := errors.New("connection refused")
	m := NewMockHTTPClient().AddErrorResponse(queued)

	if _, err := m.Post("http://example.test/hook", "application/json", nil); !errors.Is(err, queued) {
		t.Errorf("err = %v, want queued error", err)
	}

	m = NewMockHTTPClient()
	m.DefaultError = queued
	if _, err := m.Post("http://example.test/hook", "application/json", nil); !errors.Is(err, queued) {
		t.Errorf("err = %v, want default error", err)
	}
}

func TestNewStandardClientNilFallback(t *testing.T) {
	c := NewStandardClient(nil)
	if c.Client != http.DefaultClient {
		t.Error("nil client must fall back to http.DefaultClient")
	}
}
