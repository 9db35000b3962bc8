package fuzzy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hal9000y/reply-agent/internal/fuzzy"
)

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"meetign", "meeting", 2},
		{"same", "same", 0},
	}

	for _, tc := range cases {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.expected, fuzzy.Distance(tc.a, tc.b))
		})
	}
}

func TestSuggest(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		subjects []string
		expected string
	}{
		{
			name:     "typo_in_query",
			query:    "meetign",
			subjects: []string{"Meeting tomorrow", "Budget review"},
			expected: "meeting",
		},
		{
			name:     "case_insensitive",
			query:    "BUDGET",
			subjects: []string{"Budgets for Q3"},
			expected: "budgets",
		},
		{
			name:     "nothing_close_enough",
			query:    "invoice",
			subjects: []string{"Meeting tomorrow", "Budget review"},
			expected: "",
		},
		{
			name:     "short_words_skipped",
			query:    "to",
			subjects: []string{"to do list"},
			expected: "",
		},
		{
			name:     "empty_candidate_pool",
			query:    "meeting",
			subjects: nil,
			expected: "",
		},
		{
			name:  "first_seen_wins_tie",
			query: "repor",
			// "report" and "repors" are both one edit away; only a
			// strictly smaller distance replaces the current best.
			subjects: []string{"Weekly report", "Send repors"},
			expected: "report",
		},
		{
			name:     "exact_match_beats_near_match",
			query:    "report",
			subjects: []string{"Reports archive", "Weekly report"},
			expected: "report",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, fuzzy.Suggest(tc.query, tc.subjects))
		})
	}
}
