package notify

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/banshee-data/integrity.report/internal/httputil"
	"github.com/banshee-data/integrity.report/internal/ili"
)

func sampleResult() *ili.ReconcileResult {
	return &ili.ReconcileResult{
		RunA: "run-2019",
		RunB: "run-2024",
		Alignment: &ili.AlignmentResult{
			RunA:      "run-2019",
			RunB:      "run-2024",
			MatchRate: 96.5,
			RMSE:      3.2,
		},
		Matches: &ili.MatchSet{
			Stats: ili.MatchStats{Matched: 40, New: 3, RepairedRemoved: 1},
		},
		Growth: []ili.GrowthRecord{
			{MatchID: "a_b", RapidGrowth: true},
			{MatchID: "c_d", RapidGrowth: false},
		},
	}
}

func TestReconcileCompletePostsPayload(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	n := New("http://example.com/hook", mock)

	n.ReconcileComplete("aln_test", sampleResult())

	if mock.RequestCount() != 1 {
		t.Fatalf("expected 1 request, got %d", mock.RequestCount())
	}

	var p Payload
	if err := json.Unmarshal([]byte(mock.Bodies[0]), &p); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if p.AlignmentID != "aln_test" {
		t.Errorf("alignment id = %q, want aln_test", p.AlignmentID)
	}
	if p.RunA != "run-2019" || p.RunB != "run-2024" {
		t.Errorf("runs = %q/%q", p.RunA, p.RunB)
	}
	if p.Matched != 40 || p.NewDefects != 3 || p.Disappeared != 1 {
		t.Errorf("counts = %d/%d/%d, want 40/3/1", p.Matched, p.NewDefects, p.Disappeared)
	}
	if p.RapidGrowth != 1 {
		t.Errorf("rapid growth count = %d, want 1", p.RapidGrowth)
	}
}

func TestReconcileCompleteDisabled(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	n := New("", mock)

	n.ReconcileComplete("aln_test", sampleResult())

	if mock.RequestCount() != 0 {
		t.Errorf("expected no requests with empty webhook url, got %d", mock.RequestCount())
	}
}

func TestReconcileCompleteDeliveryFailure(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddErrorResponse(errors.New("connection refused"))
	n := New("http://example.com/hook", mock)

	// must not panic or surface the error
	n.ReconcileComplete("aln_test", sampleResult())

	if mock.RequestCount() != 1 {
		t.Errorf("expected delivery attempt despite failure, got %d requests", mock.RequestCount())
	}
}

func TestReconcileCompleteNon2xx(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(500, "oops")
	n := New("http://example.com/hook", mock)

	n.ReconcileComplete("aln_test", sampleResult())

	if mock.RequestCount() != 1 {
		t.Errorf("expected 1 request, got %d", mock.RequestCount())
	}
}
