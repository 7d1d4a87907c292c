package ili

import (
	"testing"

	"github.com/banshee-data/integrity.report/internal/testutil"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	return NewMatcher(newTestScorer(t), DefaultMatcherConfig())
}

func TestMatchPairsIdenticalDefects(t *testing.T) {
	m := newTestMatcher(t)

	defectsA := []Defect{
		correctedDefect("D1", 100, 3, 20, 10, 5, DefectExternalCorrosion),
		correctedDefect("D2", 800, 9, 45, 20, 8, DefectDent),
	}
	defectsB := []Defect{
		runBDefect("E1", 100, 3, 20, 10, 5, DefectExternalCorrosion),
		runBDefect("E2", 800, 9, 45, 20, 8, DefectDent),
	}

	set, err := m.Match(defectsA, defectsB)
	testutil.AssertNoError(t, err)

	if got := len(set.Matches); got != 2 {
		t.Fatalf("matches = %d, want 2", got)
	}
	byA := map[string]Match{}
	for _, match := range set.Matches {
		byA[match.DefectA] = match
	}
	if byA["D1"].DefectB != "E1" || byA["D2"].DefectB != "E2" {
		t.Errorf("pairings = D1->%s D2->%s, want E1/E2", byA["D1"].DefectB, byA["D2"].DefectB)
	}
	if byA["D1"].ID != "D1_E1" {
		t.Errorf("match ID = %q, want D1_E1", byA["D1"].ID)
	}
	if byA["D1"].Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want HIGH for identical defects", byA["D1"].Confidence)
	}
	if set.Stats.Matched != 2 || set.Stats.HighConfidence != 2 {
		t.Errorf("stats = %+v, want 2 matched, 2 high", set.Stats)
	}
	if set.RunA != "r1" || set.RunB != "r2" {
		t.Errorf("run IDs = %q/%q, want r1/r2", set.RunA, set.RunB)
	}
}

func TestMatchIsOneToOne(t *testing.T) {
	m := newTestMatcher(t)

	// Two run-A defects compete for the same run-B defect. Exactly one
	// wins; the loser is classified, not double-matched.
	defectsA := []Defect{
		correctedDefect("D1", 100, 3, 20, 10, 5, DefectExternalCorrosion),
		correctedDefect("D2", 101, 3, 21, 10, 5, DefectExternalCorrosion),
	}
	defectsB := []Defect{
		runBDefect("E1", 100, 3, 20, 10, 5, DefectExternalCorrosion),
	}

	set, err := m.Match(defectsA, defectsB)
	testutil.AssertNoError(t, err)

	if got := len(set.Matches); got != 1 {
		t.Fatalf("matches = %d, want 1", got)
	}
	seenB := map[string]int{}
	for _, match := range set.Matches {
		seenB[match.DefectB]++
	}
	if seenB["E1"] != 1 {
		t.Errorf("E1 matched %d times, want exactly once", seenB["E1"])
	}
	if set.Stats.RepairedRemoved != 1 {
		t.Errorf("repaired/removed = %d, want 1 (the losing run-A defect)", set.Stats.RepairedRemoved)
	}
}

func TestMatchOptimalOverGreedy(t *testing.T) {
	m := newTestMatcher(t)

	// Greedy pairing of D1 with its nearest neighbour E1 would strand
	// D2; the assignment solver shifts D1 to E2 only if that improves
	// the total. Here both A defects have clear distinct partners.
	defectsA := []Defect{
		correctedDefect("D1", 100, 3, 20, 10, 5, DefectExternalCorrosion),
		correctedDefect("D2", 103, 3, 20, 10, 5, DefectExternalCorrosion),
	}
	defectsB := []Defect{
		runBDefect("E1", 102, 3, 20, 10, 5, DefectExternalCorrosion),
		runBDefect("E2", 105, 3, 20, 10, 5, DefectExternalCorrosion),
	}

	set, err := m.Match(defectsA, defectsB)
	testutil.AssertNoError(t, err)

	if got := len(set.Matches); got != 2 {
		t.Fatalf("matches = %d, want 2 (optimal assignment covers both)", got)
	}
	byA := map[string]string{}
	for _, match := range set.Matches {
		byA[match.DefectA] = match.DefectB
	}
	// Total displacement 2+2 beats 1+... with a stranded defect.
	if byA["D1"] != "E1" || byA["D2"] != "E2" {
		t.Errorf("pairings = %v, want D1->E1 D2->E2", byA)
	}
}

func TestMatchConfidenceFloorRejectsWeakEdges(t *testing.T) {
	m := newTestMatcher(t)

	// Different kind, distant, different dimensions: similarity well
	// below the 0.6 floor, so the edge is rejected.
	defectsA := []Defect{correctedDefect("D1", 100, 3, 20, 10, 5, DefectDent)}
	defectsB := []Defect{runBDefect("E1", 400, 9, 80, 100, 50, DefectCrack)}

	set, err := m.Match(defectsA, defectsB)
	testutil.AssertNoError(t, err)

	if len(set.Matches) != 0 {
		t.Fatalf("matches = %v, want none below the confidence floor", set.Matches)
	}
	if set.Stats.New != 1 || set.Stats.RepairedRemoved != 1 {
		t.Errorf("stats = %+v, want both defects unmatched", set.Stats)
	}
}

func TestMatchEmptySides(t *testing.T) {
	m := newTestMatcher(t)

	onlyB := []Defect{runBDefect("E1", 100, 3, 20, 10, 5, DefectExternalCorrosion)}
	set, err := m.Match(nil, onlyB)
	testutil.AssertNoError(t, err)
	if len(set.Matches) != 0 || set.Stats.New != 1 {
		t.Errorf("empty A: stats = %+v, want 1 new", set.Stats)
	}
	if set.Unmatched[0].Reason != UnmatchedNew {
		t.Errorf("reason = %s, want new", set.Unmatched[0].Reason)
	}

	onlyA := []Defect{correctedDefect("D1", 100, 3, 20, 10, 5, DefectExternalCorrosion)}
	set, err = m.Match(onlyA, nil)
	testutil.AssertNoError(t, err)
	if len(set.Matches) != 0 || set.Stats.RepairedRemoved != 1 {
		t.Errorf("empty B: stats = %+v, want 1 repaired/removed", set.Stats)
	}
	if set.Unmatched[0].Reason != UnmatchedRepairedOrRemoved {
		t.Errorf("reason = %s, want repaired_or_removed", set.Unmatched[0].Reason)
	}
}

func TestMatchRejectsUncorrectedRunA(t *testing.T) {
	m := newTestMatcher(t)

	defectsA := []Defect{runBDefect("D1", 100, 3, 20, 10, 5, DefectExternalCorrosion)} // not corrected
	defectsB := []Defect{runBDefect("E1", 100, 3, 20, 10, 5, DefectExternalCorrosion)}

	if _, err := m.Match(defectsA, defectsB); err == nil {
		t.Fatal("expected error for uncorrected run-A defect")
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	m := newTestMatcher(t)

	defectsA := []Defect{
		correctedDefect("D1", 100, 3, 20, 10, 5, DefectExternalCorrosion),
		correctedDefect("D2", 300, 6, 40, 15, 6, DefectInternalCorrosion),
		correctedDefect("D3", 500, 9, 10, 5, 3, DefectDent),
	}
	defectsB := []Defect{
		runBDefect("E1", 101, 3, 22, 11, 5, DefectExternalCorrosion),
		runBDefect("E2", 302, 6, 44, 16, 6, DefectInternalCorrosion),
		runBDefect("E3", 499, 9, 12, 5, 3, DefectDent),
	}

	first, err := m.Match(defectsA, defectsB)
	testutil.AssertNoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := m.Match(defectsA, defectsB)
		testutil.AssertNoError(t, err)
		if len(again.Matches) != len(first.Matches) {
			t.Fatalf("run %d: match count changed from %d to %d", i, len(first.Matches), len(again.Matches))
		}
		for k := range first.Matches {
			if again.Matches[k].ID != first.Matches[k].ID {
				t.Fatalf("run %d: match %d changed from %s to %s", i, k, first.Matches[k].ID, again.Matches[k].ID)
			}
		}
	}
}

func TestConfidenceFor(t *testing.T) {
	cfg := DefaultMatcherConfig()
	tests := []struct {
		score float64
		want  Confidence
	}{
		{0.95, ConfidenceHigh},
		{0.80, ConfidenceHigh},
		{0.79, ConfidenceMedium},
		{0.60, ConfidenceMedium},
		{0.59, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tc := range tests {
		if got := cfg.ConfidenceFor(tc.score); got != tc.want {
			t.Errorf("ConfidenceFor(%g) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
