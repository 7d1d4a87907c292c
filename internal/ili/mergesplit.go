package ili

import "math"

// Merge/split detection window defaults. The clustering radius and
// minimum group size are policy choices, not derived constants; they
// are deliberately configurable.
const (
	// DefaultMergeSplitPositionWindow is the axial window around the
	// anchor defect, in canonical distance units.
	DefaultMergeSplitPositionWindow = 1.0
	// DefaultMergeSplitClockWindow is the circumferential window in
	// clock hours (circular).
	DefaultMergeSplitClockWindow = 2.0
	// DefaultMergeSplitMinGroupSize is the minimum number of clustered
	// unmatched defects that form a candidate group.
	DefaultMergeSplitMinGroupSize = 2
)

// MergeSplitConfig tunes the merge/split candidate detection pass.
type MergeSplitConfig struct {
	PositionWindow float64
	ClockWindow    float64
	MinGroupSize   int
}

// DefaultMergeSplitConfig returns the production detection window.
func DefaultMergeSplitConfig() MergeSplitConfig {
	return MergeSplitConfig{
		PositionWindow: DefaultMergeSplitPositionWindow,
		ClockWindow:    DefaultMergeSplitClockWindow,
		MinGroupSize:   DefaultMergeSplitMinGroupSize,
	}
}

// detectMergeSplit runs the best-effort post-pass over the unmatched
// defects. Several unmatched run-B defects clustered around one run-A
// defect suggest that defect split apart; several unmatched run-A
// defects around one run-B defect suggest they merged. Groups are
// reported instead of, not in addition to, independent new/removed
// classifications in the caller's presentation, and carry lower
// confidence than any Match.
//
// Run-A defects are compared at their corrected positions so both
// sides share run B's coordinate frame.
func detectMergeSplit(defectsA, defectsB []Defect, matchedA, matchedB map[int]bool, cfg MergeSplitConfig) []DefectGroup {
	if cfg.MinGroupSize < 2 {
		cfg.MinGroupSize = DefaultMergeSplitMinGroupSize
	}

	var groups []DefectGroup

	// Split: one run-A anchor, clustered unmatched run-B defects.
	for _, anchor := range defectsA {
		members := clusterAround(positionOf(anchor), anchor.Clock, defectsB, matchedB, cfg)
		if len(members) >= cfg.MinGroupSize {
			groups = append(groups, DefectGroup{
				Kind:    GroupSplitCandidate,
				Anchor:  anchor.ID,
				Members: members,
			})
		}
	}

	// Merge: one run-B anchor, clustered unmatched run-A defects.
	for _, anchor := range defectsB {
		members := clusterAround(anchor.Position, anchor.Clock, defectsA, matchedA, cfg)
		if len(members) >= cfg.MinGroupSize {
			groups = append(groups, DefectGroup{
				Kind:    GroupMergeCandidate,
				Anchor:  anchor.ID,
				Members: members,
			})
		}
	}

	return groups
}

// clusterAround collects the IDs of unmatched candidates inside the
// position+clock window around the anchor coordinates.
func clusterAround(anchorPos, anchorClock float64, candidates []Defect, matched map[int]bool, cfg MergeSplitConfig) []string {
	var ids []string
	for idx, d := range candidates {
		if matched[idx] {
			continue
		}
		if math.Abs(positionOf(d)-anchorPos) > cfg.PositionWindow {
			continue
		}
		if circularClockDistance(d.Clock, anchorClock) > cfg.ClockWindow {
			continue
		}
		ids = append(ids, d.ID)
	}
	return ids
}

// positionOf returns the defect's position in run B's frame: the
// corrected position when one has been applied, the raw position
// otherwise (run-B defects are already in that frame).
func positionOf(d Defect) float64 {
	if d.Corrected {
		return d.CorrectedPosition
	}
	return d.Position
}

func circularClockDistance(c1, c2 float64) float64 {
	direct := math.Abs(c1 - c2)
	return math.Min(direct, clockHours-direct)
}
