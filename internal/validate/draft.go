// Package validate runs structural acceptance checks on generated
// reply drafts before they are shown for approval.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	minDraftLength = 20
	maxDraftWords  = 300
)

var (
	// Unfilled template placeholders: {name}, [NAME], <DATE>.
	placeholderPattern = regexp.MustCompile(`\{[^}]+\}|\[[A-Z][A-Z_]+\]|<[A-Z][A-Z_]+>`)

	// Completion markers a model may leave behind.
	markerPattern = regexp.MustCompile(`\[answer needed\]|\[response needed\]|\[todo\]|\[fill in\]`)
)

// Result is the outcome of validating a draft. Errors block sending;
// warnings are surfaced to the approver but never affect validity.
type Result struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// HasIssues reports whether anything at all was flagged.
func (r Result) HasIssues() bool {
	return len(r.Errors) > 0 || len(r.Warnings) > 0
}

// Summary renders the flagged issues for the human approver.
func (r Result) Summary() string {
	var lines []string
	if len(r.Errors) > 0 {
		lines = append(lines, "ERRORS (must fix before sending):")
		for _, e := range r.Errors {
			lines = append(lines, "   - "+e)
		}
	}
	if len(r.Warnings) > 0 {
		lines = append(lines, "WARNINGS:")
		for _, w := range r.Warnings {
			lines = append(lines, "   - "+w)
		}
	}

	return strings.Join(lines, "\n")
}

// Draft checks a reply draft. All checks run independently; none
// short-circuits the others.
func Draft(draft string) Result {
	var errors, warnings []string

	if len(strings.TrimSpace(draft)) < minDraftLength {
		errors = append(errors, "Draft is too short or empty.")
	}

	if placeholders := distinct(placeholderPattern.FindAllString(draft, -1)); len(placeholders) > 0 {
		errors = append(errors, fmt.Sprintf(
			"Unfilled placeholders found: %s", strings.Join(placeholders, ", ")))
	}

	if markerPattern.MatchString(strings.ToLower(draft)) {
		errors = append(errors, "Draft contains unanswered markers that must be filled in.")
	}

	if words := len(strings.Fields(draft)); words > maxDraftWords {
		warnings = append(warnings, fmt.Sprintf(
			"Draft is quite long (%d words). Consider shortening it.", words))
	}

	return Result{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var unique []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	sort.Strings(unique)

	return unique
}
