package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council/internal/llm"
)

func TestParseRanking_NumberedFormat(t *testing.T) {
	t.Parallel()

	text := "Response A is great...\nResponse B is ok...\n\nFINAL RANKING:\n1. Response B\n2. Response A\n3. Response C"
	labels := ParseRanking(text)
	assert.Equal(t, []string{"Response B", "Response A", "Response C"}, labels)
}

func TestParseRanking_FallsBackToBareLabelsInSection(t *testing.T) {
	t.Parallel()

	text := "FINAL RANKING:\nResponse C, then Response A, then Response B"
	labels := ParseRanking(text)
	assert.Equal(t, []string{"Response C", "Response A", "Response B"}, labels)
}

func TestParseRanking_NoMarkerFallsBackToWholeText(t *testing.T) {
	t.Parallel()

	text := "I think Response A beats Response B overall."
	labels := ParseRanking(text)
	assert.Equal(t, []string{"Response A", "Response B"}, labels)
}

func TestParseRanking_Unparseable(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ParseRanking("I have no opinion on this."))
}

func TestParseRanking_DuplicatesCollapsed(t *testing.T) {
	t.Parallel()

	text := "FINAL RANKING:\n1. Response A\n2. Response A\n3. Response B"
	labels := ParseRanking(text)
	assert.Equal(t, []string{"Response A", "Response B"}, labels)
}

func TestParseRanking_RoundTripWithFormatRanking(t *testing.T) {
	t.Parallel()

	labels := []string{"Response C", "Response A", "Response B"}
	var formatted string
	for i, l := range labels {
		formatted += itoaLine(i+1) + l + "\n"
	}
	text := "FINAL RANKING:\n" + formatted
	assert.Equal(t, labels, ParseRanking(text))
}

func itoaLine(n int) string {
	// minimal helper for the test's own formatting; keeps this file free of
	// a strconv import for a single call site.
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits) + ". "
}

func TestAggregateRankings_E1Scenario(t *testing.T) {
	t.Parallel()

	labelToModel := map[string]llm.ModelID{
		"Response A": "vendor/m1",
		"Response B": "vendor/m2",
		"Response C": "vendor/m3",
	}
	parsed := [][]string{
		{"Response B", "Response A", "Response C"},
		{"Response B", "Response C", "Response A"},
		{"Response C", "Response B", "Response A"},
	}
	entries := AggregateRankings(parsed, labelToModel)
	require.Len(t, entries, 3)

	byModel := map[llm.ModelID]AggregateEntry{}
	for _, e := range entries {
		byModel[e.Model] = e
	}
	assert.InDelta(t, 1.333, byModel["vendor/m2"].AverageRank, 0.01)
	assert.InDelta(t, 2.0, byModel["vendor/m3"].AverageRank, 0.01)
	assert.InDelta(t, 2.667, byModel["vendor/m1"].AverageRank, 0.01)

	assert.Equal(t, llm.ModelID("vendor/m2"), entries[0].Model)
	assert.Equal(t, llm.ModelID("vendor/m3"), entries[1].Model)
	assert.Equal(t, llm.ModelID("vendor/m1"), entries[2].Model)
}

func TestAggregateRankings_NonExistentLabelDiscarded(t *testing.T) {
	t.Parallel()

	labelToModel := map[string]llm.ModelID{
		"Response A": "vendor/m1",
		"Response B": "vendor/m2",
		"Response C": "vendor/m3",
	}
	parsed := [][]string{
		{"Response Z", "Response A", "Response B"},
	}
	entries := AggregateRankings(parsed, labelToModel)
	byModel := map[llm.ModelID]AggregateEntry{}
	for _, e := range entries {
		byModel[e.Model] = e
	}
	assert.Equal(t, 1, byModel["vendor/m1"].RankingsCount)
	assert.InDelta(t, 2.0, byModel["vendor/m1"].AverageRank, 0.01)
}
