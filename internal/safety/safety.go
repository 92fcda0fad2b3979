// Package safety implements the prompt-injection defense pipeline (C4):
// query-length validation, suspicious-pattern detection, multi-turn attack
// heuristics, envelope wrapping, inter-stage sanitization, and output
// validation. Every operation here is a pure function with no I/O.
package safety

import (
	"regexp"
	"strings"
	"unicode"

	"council/internal/llm"
)

// RiskLevel classifies how concerning a detected pattern is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// QueryLengthResult is the output of ValidateQueryLength.
type QueryLengthResult struct {
	Valid bool
	Chars int
	Limit int
}

// ValidateQueryLength checks text against limit (§4.4.1). The caller raises
// QueryTooLong when Valid is false; this function never raises itself.
func ValidateQueryLength(text string, limit int) QueryLengthResult {
	n := len([]rune(text))
	return QueryLengthResult{Valid: n <= limit, Chars: n, Limit: limit}
}

// SuspiciousQueryResult is the output of DetectSuspiciousQuery and
// DetectMultiTurnAttack.
type SuspiciousQueryResult struct {
	Suspicious bool
	Risk       RiskLevel
	Patterns   []string
}

var injectionPhrases = []string{
	"ignore previous", "ignore all previous", "ignore the above",
	"disregard previous", "system prompt", "you are now", "act as if",
	"new instructions", "forget everything", "override your instructions",
	"reveal your instructions", "print your system prompt",
}

var delimiterMimicry = regexp.MustCompile(`(?i)(===+\s*(end|system|company|project|department)\b|<\|?(system|end|im_start|im_end)\|?>|\[\[?system\]?\]|###\s*(system|instructions))`)

var roleSwitchMarkers = regexp.MustCompile(`(?i)^\s*(system|assistant)\s*:`)

// base64BlockThreshold is the minimum run length treated as a suspicious
// encoded block (§4.4.2).
const base64BlockThreshold = 200

var base64Block = regexp.MustCompile(`[A-Za-z0-9+/]{200,}={0,2}`)

// DetectSuspiciousQuery scans text for injection indicators (§4.4.2). It
// never blocks; callers log the result and proceed.
func DetectSuspiciousQuery(text string) SuspiciousQueryResult {
	var patterns []string
	lower := strings.ToLower(text)

	for _, phrase := range injectionPhrases {
		if strings.Contains(lower, phrase) {
			patterns = append(patterns, "phrase:"+phrase)
		}
	}
	if delimiterMimicry.MatchString(text) {
		patterns = append(patterns, "delimiter_mimicry")
	}
	for _, line := range strings.Split(text, "\n") {
		if roleSwitchMarkers.MatchString(line) {
			patterns = append(patterns, "role_switch_marker")
			break
		}
	}
	if base64Block.MatchString(text) {
		patterns = append(patterns, "base64_block")
	}
	if ratio := controlOrZeroWidthRatio(text); ratio > 0.05 {
		patterns = append(patterns, "control_char_ratio")
	}

	if len(patterns) == 0 {
		return SuspiciousQueryResult{Suspicious: false, Risk: RiskLow}
	}

	risk := RiskMedium
	if len(patterns) >= 3 {
		risk = RiskHigh
	}
	return SuspiciousQueryResult{Suspicious: true, Risk: risk, Patterns: patterns}
}

func controlOrZeroWidthRatio(text string) float64 {
	if text == "" {
		return 0
	}
	runes := []rune(text)
	count := 0
	for _, r := range runes {
		if isZeroWidth(r) || (unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r') {
			count++
		}
	}
	return float64(count) / float64(len(runes))
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF', '\u2060':
		return true
	default:
		return false
	}
}

// DetectMultiTurnAttack looks across history for escalation patterns
// (§4.4.3): increasing mentions of system/internal terms, repeated
// reframing of refusals, and encoding obfuscation following a refusal.
func DetectMultiTurnAttack(history []llm.Message, currentQuery string) SuspiciousQueryResult {
	var patterns []string

	systemTermHits := 0
	refusalSeen := false
	obfuscationAfterRefusal := false
	for _, msg := range history {
		lower := strings.ToLower(msg.Content)
		if strings.Contains(lower, "system prompt") || strings.Contains(lower, "internal") || strings.Contains(lower, "instructions") {
			systemTermHits++
		}
		if msg.Role == llm.RoleAssistant && looksLikeRefusal(lower) {
			refusalSeen = true
			continue
		}
		if refusalSeen && msg.Role == llm.RoleUser && base64Block.MatchString(msg.Content) {
			obfuscationAfterRefusal = true
		}
	}
	if systemTermHits >= 3 {
		patterns = append(patterns, "escalating_system_terms")
	}
	if refusalSeen && looksLikeReframe(strings.ToLower(currentQuery)) {
		patterns = append(patterns, "refusal_reframe")
	}
	if obfuscationAfterRefusal {
		patterns = append(patterns, "obfuscation_after_refusal")
	}

	if len(patterns) == 0 {
		return SuspiciousQueryResult{Suspicious: false, Risk: RiskLow}
	}
	risk := RiskMedium
	if obfuscationAfterRefusal || len(patterns) >= 2 {
		risk = RiskHigh
	}
	return SuspiciousQueryResult{Suspicious: true, Risk: risk, Patterns: patterns}
}

func looksLikeRefusal(lower string) bool {
	return strings.Contains(lower, "i can't") || strings.Contains(lower, "i cannot") ||
		strings.Contains(lower, "i'm not able to") || strings.Contains(lower, "against my guidelines")
}

func looksLikeReframe(lower string) bool {
	return strings.Contains(lower, "hypothetically") || strings.Contains(lower, "for a story") ||
		strings.Contains(lower, "pretend") || strings.Contains(lower, "in a fictional")
}
