package ili

import "fmt"

// Matcher confidence policy defaults.
const (
	// DefaultConfidenceFloor drops assignment edges below this
	// similarity; rejected edges fall back to unmatched.
	DefaultConfidenceFloor = 0.6
	// DefaultHighConfidence and DefaultMediumConfidence are the tier
	// breakpoints for HIGH and MEDIUM matches.
	DefaultHighConfidence   = 0.8
	DefaultMediumConfidence = 0.6
)

// MatcherConfig holds the confidence policy and the merge/split
// detection window.
type MatcherConfig struct {
	ConfidenceFloor  float64
	HighConfidence   float64
	MediumConfidence float64
	MergeSplit       MergeSplitConfig
}

// DefaultMatcherConfig returns the production matching policy.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		ConfidenceFloor:  DefaultConfidenceFloor,
		HighConfidence:   DefaultHighConfidence,
		MediumConfidence: DefaultMediumConfidence,
		MergeSplit:       DefaultMergeSplitConfig(),
	}
}

// ConfidenceFor discretises a similarity score into a tier. The tier is
// a pure function of the score; it is never assigned independently.
func (c MatcherConfig) ConfidenceFor(similarity float64) Confidence {
	switch {
	case similarity >= c.HighConfidence:
		return ConfidenceHigh
	case similarity >= c.MediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Matcher pairs corrected run-A defects with run-B defects by solving
// the assignment problem over a similarity cost matrix.
type Matcher struct {
	scorer *Scorer
	cfg    MatcherConfig
}

// NewMatcher builds a Matcher around a validated scorer.
func NewMatcher(scorer *Scorer, cfg MatcherConfig) *Matcher {
	return &Matcher{scorer: scorer, cfg: cfg}
}

// Match produces the one-to-one defect correspondence between the two
// runs, the classification of everything left over, and merge/split
// candidate groups. defectsA must carry corrected positions.
//
// An empty side short-circuits: no assignment is solved and every
// defect on the populated side is classified immediately.
func (m *Matcher) Match(defectsA, defectsB []Defect) (*MatchSet, error) {
	set := &MatchSet{
		RunA: firstRunID(defectsA),
		RunB: firstRunID(defectsB),
		Stats: MatchStats{
			TotalA: len(defectsA),
			TotalB: len(defectsB),
		},
	}

	if len(defectsA) == 0 || len(defectsB) == 0 {
		classifyLeftovers(set, defectsA, defectsB, nil, nil)
		return set, nil
	}

	// Pairwise similarity and the derived cost matrix.
	sim := make([][]float64, len(defectsA))
	parts := make([][]SimilarityBreakdown, len(defectsA))
	cost := make([][]float64, len(defectsA))
	for i, da := range defectsA {
		sim[i] = make([]float64, len(defectsB))
		parts[i] = make([]SimilarityBreakdown, len(defectsB))
		cost[i] = make([]float64, len(defectsB))
		for j, db := range defectsB {
			s, p, err := m.scorer.Score(da, db)
			if err != nil {
				return nil, fmt.Errorf("match: %w", err)
			}
			sim[i][j] = s
			parts[i][j] = p
			cost[i][j] = 1 - s
		}
	}

	assign := hungarianAssign(cost)

	matchedA := make(map[int]bool, len(assign))
	matchedB := make(map[int]bool, len(assign))
	for i, j := range assign {
		if j < 0 || sim[i][j] < m.cfg.ConfidenceFloor {
			continue // rejected edges fall back to unmatched
		}
		tier := m.cfg.ConfidenceFor(sim[i][j])
		// Deterministic ID: repeated invocations with identical inputs
		// must produce identical output.
		set.Matches = append(set.Matches, Match{
			ID:         fmt.Sprintf("%s_%s", defectsA[i].ID, defectsB[j].ID),
			DefectA:    defectsA[i].ID,
			DefectB:    defectsB[j].ID,
			Similarity: sim[i][j],
			Confidence: tier,
			Components: parts[i][j],
		})
		matchedA[i] = true
		matchedB[j] = true

		switch tier {
		case ConfidenceHigh:
			set.Stats.HighConfidence++
		case ConfidenceMedium:
			set.Stats.MediumConfidence++
		default:
			set.Stats.LowConfidence++
		}
	}
	set.Stats.Matched = len(set.Matches)

	classifyLeftovers(set, defectsA, defectsB, matchedA, matchedB)
	set.Groups = detectMergeSplit(defectsA, defectsB, matchedA, matchedB, m.cfg.MergeSplit)
	return set, nil
}

// classifyLeftovers tags every defect not covered by a match: run-A
// leftovers were repaired or removed, run-B leftovers are new.
func classifyLeftovers(set *MatchSet, defectsA, defectsB []Defect, matchedA, matchedB map[int]bool) {
	for i, d := range defectsA {
		if !matchedA[i] {
			set.Unmatched = append(set.Unmatched, UnmatchedDefect{
				DefectID: d.ID,
				RunID:    d.RunID,
				Reason:   UnmatchedRepairedOrRemoved,
			})
			set.Stats.RepairedRemoved++
		}
	}
	for j, d := range defectsB {
		if !matchedB[j] {
			set.Unmatched = append(set.Unmatched, UnmatchedDefect{
				DefectID: d.ID,
				RunID:    d.RunID,
				Reason:   UnmatchedNew,
			})
			set.Stats.New++
		}
	}
}

func firstRunID(defects []Defect) string {
	if len(defects) == 0 {
		return ""
	}
	return defects[0].RunID
}
