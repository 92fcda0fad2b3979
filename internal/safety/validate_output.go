package safety

import (
	"regexp"
)

// OutputValidation is the result of ValidateLLMOutput.
type OutputValidation struct {
	IsSafe         bool
	RiskLevel      RiskLevel
	Issues         []string
	FilteredOutput string
}

// sensitivePatterns catches high-confidence sensitive-data shapes: API-key
// shaped tokens, bearer tokens, and private-key headers. Deliberately
// narrow (high precision) since a false positive here redacts legitimate
// chairman output.
var sensitivePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"api_key", regexp.MustCompile(`(?i)\b(sk|pk|api)-[A-Za-z0-9]{20,}\b`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._-]{20,}\b`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
}

// ValidateLLMOutput checks Stage 3 output before it reaches the caller
// (§4.4.6): system-prompt leakage, injection-sentinel echo, and sensitive
// data. Sensitive matches are redacted in FilteredOutput; the unredacted
// risk is still reported for logging. Idempotent: running it again on
// FilteredOutput reports is_safe=true with no further changes, since the
// redaction patterns no longer match their own placeholder text.
func ValidateLLMOutput(finalText string) OutputValidation {
	var issues []string
	filtered := finalText

	if sectionMarkerPattern.MatchString(filtered) {
		issues = append(issues, "system_prompt_leakage")
		filtered = sectionMarkerPattern.ReplaceAllString(filtered, "[redacted section marker]")
	}
	if envelopeSentinel.MatchString(filtered) {
		issues = append(issues, "injection_sentinel_echo")
		filtered = stripEnvelopeSentinels(filtered)
	}
	for _, p := range sensitivePatterns {
		if p.re.MatchString(filtered) {
			issues = append(issues, "sensitive_data:"+p.name)
			filtered = p.re.ReplaceAllString(filtered, "[REDACTED]")
		}
	}

	if len(issues) == 0 {
		return OutputValidation{IsSafe: true, RiskLevel: RiskLow, FilteredOutput: finalText}
	}

	risk := RiskMedium
	for _, issue := range issues {
		if issue == "system_prompt_leakage" {
			risk = RiskHigh
		}
	}
	return OutputValidation{
		IsSafe:         false,
		RiskLevel:      risk,
		Issues:         issues,
		FilteredOutput: filtered,
	}
}
