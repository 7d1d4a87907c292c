package ili

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectSplitCandidate(t *testing.T) {
	// One large run-A defect; two unmatched run-B defects clustered
	// tightly around its corrected position.
	defectsA := []Defect{
		correctedDefect("D1", 500, 6, 40, 30, 10, DefectExternalCorrosion),
	}
	defectsB := []Defect{
		runBDefect("E1", 499.7, 6, 35, 12, 8, DefectExternalCorrosion),
		runBDefect("E2", 500.4, 7, 38, 14, 9, DefectExternalCorrosion),
	}

	groups := detectMergeSplit(defectsA, defectsB, nil, nil, DefaultMergeSplitConfig())
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Kind != GroupSplitCandidate {
		t.Errorf("kind = %s, want split_candidate", g.Kind)
	}
	if g.Anchor != "D1" {
		t.Errorf("anchor = %s, want D1", g.Anchor)
	}
	if diff := cmp.Diff([]string{"E1", "E2"}, g.Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectMergeCandidate(t *testing.T) {
	defectsA := []Defect{
		correctedDefect("D1", 299.6, 4, 20, 10, 5, DefectInternalCorrosion),
		correctedDefect("D2", 300.5, 5, 22, 11, 5, DefectInternalCorrosion),
	}
	defectsB := []Defect{
		runBDefect("E1", 300, 4.5, 45, 25, 12, DefectInternalCorrosion),
	}

	groups := detectMergeSplit(defectsA, defectsB, nil, nil, DefaultMergeSplitConfig())

	var merge *DefectGroup
	for i := range groups {
		if groups[i].Kind == GroupMergeCandidate {
			merge = &groups[i]
		}
	}
	if merge == nil {
		t.Fatalf("no merge candidate in %+v", groups)
	}
	if merge.Anchor != "E1" {
		t.Errorf("anchor = %s, want E1", merge.Anchor)
	}
	if diff := cmp.Diff([]string{"D1", "D2"}, merge.Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectMergeSplitIgnoresMatchedDefects(t *testing.T) {
	defectsA := []Defect{
		correctedDefect("D1", 500, 6, 40, 30, 10, DefectExternalCorrosion),
	}
	defectsB := []Defect{
		runBDefect("E1", 499.7, 6, 35, 12, 8, DefectExternalCorrosion),
		runBDefect("E2", 500.4, 7, 38, 14, 9, DefectExternalCorrosion),
	}

	// E1 already matched: only one unmatched neighbour remains, below
	// the minimum group size.
	groups := detectMergeSplit(defectsA, defectsB, nil, map[int]bool{0: true}, DefaultMergeSplitConfig())
	if len(groups) != 0 {
		t.Errorf("groups = %+v, want none", groups)
	}
}

func TestDetectMergeSplitRespectsWindows(t *testing.T) {
	cfg := DefaultMergeSplitConfig()

	defectsA := []Defect{
		correctedDefect("D1", 500, 6, 40, 30, 10, DefectExternalCorrosion),
	}
	tests := []struct {
		name string
		b    []Defect
	}{
		{"outside position window", []Defect{
			runBDefect("E1", 499.8, 6, 35, 12, 8, DefectExternalCorrosion),
			runBDefect("E2", 502, 6, 38, 14, 9, DefectExternalCorrosion),
		}},
		{"outside clock window", []Defect{
			runBDefect("E1", 499.8, 6, 35, 12, 8, DefectExternalCorrosion),
			runBDefect("E2", 500.2, 11, 38, 14, 9, DefectExternalCorrosion),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			groups := detectMergeSplit(defectsA, tc.b, nil, nil, cfg)
			if len(groups) != 0 {
				t.Errorf("groups = %+v, want none", groups)
			}
		})
	}
}

func TestDetectMergeSplitClockWindowWraps(t *testing.T) {
	defectsA := []Defect{
		correctedDefect("D1", 500, 11.5, 40, 30, 10, DefectExternalCorrosion),
	}
	// 0.5 and 11.5 are 1 hour apart across the 12 o'clock boundary.
	defectsB := []Defect{
		runBDefect("E1", 499.8, 0.5, 35, 12, 8, DefectExternalCorrosion),
		runBDefect("E2", 500.2, 11, 38, 14, 9, DefectExternalCorrosion),
	}

	groups := detectMergeSplit(defectsA, defectsB, nil, nil, DefaultMergeSplitConfig())
	if len(groups) != 1 || groups[0].Kind != GroupSplitCandidate {
		t.Fatalf("groups = %+v, want one split candidate", groups)
	}
	if len(groups[0].Members) != 2 {
		t.Errorf("members = %v, want both wrapped-clock defects", groups[0].Members)
	}
}

func TestDetectMergeSplitUsesCorrectedPositions(t *testing.T) {
	// Raw run-A position far from the cluster; corrected position
	// inside the window. Group detection must use the corrected frame.
	anchor := correctedDefect("D1", 500, 6, 40, 30, 10, DefectExternalCorrosion)
	anchor.Position = 450
	defectsB := []Defect{
		runBDefect("E1", 499.7, 6, 35, 12, 8, DefectExternalCorrosion),
		runBDefect("E2", 500.4, 6, 38, 14, 9, DefectExternalCorrosion),
	}

	groups := detectMergeSplit([]Defect{anchor}, defectsB, nil, nil, DefaultMergeSplitConfig())
	if len(groups) != 1 || groups[0].Anchor != "D1" {
		t.Fatalf("groups = %+v, want split candidate anchored at D1", groups)
	}
}
