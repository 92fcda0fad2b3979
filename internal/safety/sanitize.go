package safety

import (
	"regexp"
	"strings"
)

// DefaultSectionCap is the per-section truncation cap applied by
// SanitizeUserContent (§4.4.5).
const DefaultSectionCap = 8000

// sectionMarkerPattern matches this repository's composer section markers
// (e.g. "=== COMPANY CONTEXT ===") so leaked markers can be redacted from
// model output before it flows into a later stage's prompt.
var sectionMarkerPattern = regexp.MustCompile(`===\s*[A-Za-z0-9 :&().,'_-]{1,80}?\s*===`)

var zeroWidthPattern = regexp.MustCompile(`[\x{200B}-\x{200F}\x{FEFF}\x{2060}]`)

// SanitizeUserContent cleans model-produced content before it is embedded
// into a subsequent stage's prompt (§4.4.5). Idempotent: applying it twice
// yields the same result as applying it once (P10/the round-trip law in
// §8), since every operation here is itself a normal form.
func SanitizeUserContent(text string) string {
	return sanitizeUserContentWithCap(text, DefaultSectionCap)
}

// SanitizeUserContentWithCap is SanitizeUserContent with an explicit
// per-section cap, used by the Context Composer where the budget is
// computed per section rather than fixed.
func SanitizeUserContentWithCap(text string, cap int) string {
	return sanitizeUserContentWithCap(text, cap)
}

func sanitizeUserContentWithCap(text string, cap int) string {
	cleaned := stripEnvelopeSentinels(text)
	cleaned = zeroWidthPattern.ReplaceAllString(cleaned, "")
	cleaned = collapseControlChars(cleaned)
	cleaned = sectionMarkerPattern.ReplaceAllString(cleaned, "[redacted section marker]")

	if cap > 0 && !strings.HasSuffix(cleaned, truncationMarker) {
		runes := []rune(cleaned)
		if len(runes) > cap {
			cleaned = truncateAtParagraph(runes, cap)
		}
	}
	return cleaned
}

func collapseControlChars(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const truncationMarker = "…[truncated]"

// truncateAtParagraph cuts runes to at most cap characters, preferring the
// last paragraph boundary ("\n\n") before the cap so a cut doesn't land
// mid-sentence; falls back to a hard cut if no boundary is found. The
// marker itself counts against cap so the result never exceeds it.
func truncateAtParagraph(runes []rune, cap int) string {
	markerLen := len([]rune(truncationMarker))
	budget := cap - markerLen
	if budget < 0 {
		budget = 0
	}
	window := string(runes[:budget])
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return window[:idx] + "\n\n" + truncationMarker
	}
	return window + truncationMarker
}
