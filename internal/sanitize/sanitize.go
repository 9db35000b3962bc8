package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// BlockedText replaces the whole body when prompt injection is
// detected. No partial redaction is attempted on flagged content.
const BlockedText = "[WARNING: Email content was flagged as potentially malicious and has been redacted.]"

// injectionPhrases are imperative-override phrases matched as
// case-insensitive substrings of the normalized text.
var injectionPhrases = []string{
	"ignore previous instructions",
	"ignore all instructions",
	"ignore your instructions",
	"forget your instructions",
	"forget previous instructions",
	"you are now",
	"act as",
	"pretend you are",
	"disregard your",
	"override your",
	"new instruction",
	"system prompt",
	"do not follow",
	"stop following",
}

type redactionRule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// piiRules run in fixed order, narrow before broad, each pass seeing
// the rewrites of the previous ones. The ordering is a contract; the
// patterns themselves are heuristics, not a guarantee of complete PII
// removal.
var piiRules = []redactionRule{
	// National ID (9 digits)
	{regexp.MustCompile(`(?i)\b\d{9}\b`), "[ID_REDACTED]"},
	// Credit card (13-19 digits, optionally separated by spaces or dashes)
	{regexp.MustCompile(`(?i)\b(?:\d[ -]?){13,19}\b`), "[CARD_REDACTED]"},
	// Country phone: 05X-XXXXXXX or 05XXXXXXXX or +972...
	{regexp.MustCompile(`(?i)(\+972|0)([23489]|5[0-9]|7[0-9])[-\s]?\d{3}[-\s]?\d{4}`), "[PHONE_REDACTED]"},
	// Generic international phone (at least 7 digits with optional country code)
	{regexp.MustCompile(`(?i)\b\+?[\d\s\-().]{7,20}\d\b`), "[PHONE_REDACTED]"},
	// Email addresses
	{regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "[EMAIL_REDACTED]"},
	// Physical addresses (house number + street keyword)
	{regexp.MustCompile(`(?i)\b\d{1,5}\s+\w+\s+(st|street|ave|avenue|rd|road|blvd|dr|drive|ln|lane|way)\b`), "[ADDRESS_REDACTED]"},
	// Bank account numbers (6-9 digits)
	{regexp.MustCompile(`(?i)\b\d{6,9}\b`), "[ACCOUNT_REDACTED]"},
}

// Result is the outcome of running content through the pipeline. Text
// is the only form of the body allowed to reach the model.
type Result struct {
	Text    string
	Notices []string
	Blocked bool
}

// Sanitize normalizes raw content, short-circuits on prompt injection
// and applies the ordered redaction rules. Notices record the
// placeholder labels of rules that matched, deduplicated in
// first-occurrence order.
func Sanitize(raw string) Result {
	text := Normalize(raw)

	if containsInjection(text) {
		return Result{Text: BlockedText, Blocked: true}
	}

	var notices []string
	for _, rule := range piiRules {
		if !rule.pattern.MatchString(text) {
			continue
		}
		text = rule.pattern.ReplaceAllString(text, rule.placeholder)
		notices = append(notices, rule.placeholder)
	}
	notices = dedupe(notices)

	if len(notices) > 0 {
		text += fmt.Sprintf(
			"\n\n[Note: The following sensitive fields were redacted before processing: %s]",
			strings.Join(notices, ", "),
		)
	}

	return Result{Text: text, Notices: notices}
}

func containsInjection(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range injectionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return false
}

func dedupe(notices []string) []string {
	seen := make(map[string]bool, len(notices))
	unique := notices[:0]
	for _, n := range notices {
		if seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}

	return unique
}
