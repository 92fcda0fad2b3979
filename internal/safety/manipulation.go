package safety

// RankingSignal is the minimal view of a Stage 2 reviewer result that
// DetectRankingManipulation needs: which model reviewed, and the parsed
// order of labels it produced (best first). Defined here rather than
// imported from internal/council to keep this package free of a cycle
// back to its only caller.
type RankingSignal struct {
	ReviewerModel string
	ParsedRanking []string // labels, e.g. "Response A", best first
}

// ManipulationResult is the output of DetectRankingManipulation.
type ManipulationResult struct {
	Suspicious bool
	Patterns   []string
	Details    map[string]any
}

// DetectRankingManipulation examines parsed Stage 2 rankings for collusion
// or self-promotion signals (§4.4.7). It never suppresses results; it only
// attaches a warning.
func DetectRankingManipulation(results []RankingSignal, labelToModel map[string]string) ManipulationResult {
	var patterns []string
	details := map[string]any{}

	if selfPromo := detectSelfPromotion(results, labelToModel); len(selfPromo) > 0 {
		patterns = append(patterns, "self_promotion")
		details["self_promotion"] = selfPromo
	}
	if identical := detectNearIdenticalRankings(results); len(identical) > 0 {
		patterns = append(patterns, "near_identical_rankings")
		details["near_identical_pairs"] = identical
	}

	return ManipulationResult{Suspicious: len(patterns) > 0, Patterns: patterns, Details: details}
}

// detectSelfPromotion flags a reviewer whose own (anonymized) response
// appears first in its own ranking.
func detectSelfPromotion(results []RankingSignal, labelToModel map[string]string) []string {
	var flagged []string
	for _, r := range results {
		if len(r.ParsedRanking) == 0 {
			continue
		}
		topLabel := r.ParsedRanking[0]
		if labelToModel[topLabel] == r.ReviewerModel {
			flagged = append(flagged, r.ReviewerModel)
		}
	}
	return flagged
}

// detectNearIdenticalRankings flags pairs of reviewers with identical full
// orderings over at least three candidates.
func detectNearIdenticalRankings(results []RankingSignal) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if len(results[i].ParsedRanking) < 3 {
				continue
			}
			if sameOrder(results[i].ParsedRanking, results[j].ParsedRanking) {
				pairs = append(pairs, [2]string{results[i].ReviewerModel, results[j].ReviewerModel})
			}
		}
	}
	return pairs
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
