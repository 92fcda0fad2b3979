package council

import (
	"regexp"
	"sort"
	"strings"

	"council/internal/llm"
)

var (
	numberedRankingLine = regexp.MustCompile(`(?i)\d+\.\s*Response\s+[A-Z]`)
	bareResponseLabel   = regexp.MustCompile(`(?i)Response\s+[A-Z]`)
)

// ParseRanking extracts the ordered list of labels from a reviewer's raw
// ranking text (§4.8.1). It never errors: unparseable text yields an empty
// slice, and the caller is responsible for logging that as a parse
// failure.
func ParseRanking(text string) []string {
	section := text
	if idx := strings.Index(strings.ToUpper(text), "FINAL RANKING:"); idx >= 0 {
		section = text[idx+len("FINAL RANKING:"):]
	}

	if matches := numberedRankingLine.FindAllString(section, -1); len(matches) > 0 {
		return normalizeLabels(matches)
	}
	if matches := bareResponseLabel.FindAllString(section, -1); len(matches) > 0 {
		return normalizeLabels(matches)
	}
	if matches := bareResponseLabel.FindAllString(text, -1); len(matches) > 0 {
		return normalizeLabels(matches)
	}
	return nil
}

// normalizeLabels extracts "Response X" from each match (numbered-line
// matches carry the leading "N. " prefix) and drops duplicates, keeping
// the first occurrence's position (P5: parsed list has no duplicates).
func normalizeLabels(matches []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		loc := bareResponseLabel.FindString(m)
		label := normalizeLabel(loc)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func normalizeLabel(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return ""
	}
	letter := strings.ToUpper(fields[1])
	return "Response " + letter
}

// AggregateEntry is one row of the aggregate ranking (§4.8.2).
type AggregateEntry struct {
	Model         llm.ModelID
	AverageRank   float64
	RankingsCount int
}

// AggregateRankings computes the Borda-style aggregate order: for each
// model, the average of its position across every reviewer that ranked it
// (missing positions ignored), sorted ascending by average rank with ties
// broken by descending rankings-received count (§4.8.2, P6).
func AggregateRankings(parsedByReviewer [][]string, labelToModel map[string]llm.ModelID) []AggregateEntry {
	sums := map[llm.ModelID]int{}
	counts := map[llm.ModelID]int{}

	for _, parsed := range parsedByReviewer {
		for position, label := range parsed {
			model, ok := labelToModel[label]
			if !ok {
				continue // non-existent label discarded during aggregation
			}
			sums[model] += position + 1
			counts[model]++
		}
	}

	entries := make([]AggregateEntry, 0, len(labelToModel))
	seen := map[llm.ModelID]bool{}
	for _, model := range labelToModel {
		if seen[model] {
			continue
		}
		seen[model] = true
		count := counts[model]
		var avg float64
		if count > 0 {
			avg = float64(sums[model]) / float64(count)
		}
		entries = append(entries, AggregateEntry{Model: model, AverageRank: avg, RankingsCount: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.RankingsCount == 0 && b.RankingsCount == 0 {
			return a.Model < b.Model
		}
		if a.RankingsCount == 0 {
			return false
		}
		if b.RankingsCount == 0 {
			return true
		}
		if a.AverageRank != b.AverageRank {
			return a.AverageRank < b.AverageRank
		}
		return a.RankingsCount > b.RankingsCount
	})
	return entries
}
