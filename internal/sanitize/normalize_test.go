package sanitize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hal9000y/reply-agent/internal/sanitize"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain_text_untouched",
			input:    "Hello, just checking in about the invoice.",
			expected: "Hello, just checking in about the invoice.",
		},
		{
			name:     "entities_decoded",
			input:    "Caf&eacute; meeting &amp; budget review",
			expected: "Café meeting & budget review",
		},
		{
			name:     "tags_stripped",
			input:    "<div><p>Hello <b>there</b></p></div>",
			expected: "Hello there",
		},
		{
			name:     "script_removed_with_content",
			input:    "<div>Hi<script type=\"text/javascript\">alert('x')</script> there</div>",
			expected: "Hi there",
		},
		{
			name:     "style_removed_with_content",
			input:    "<style>.body { color: red; }</style>Actual body",
			expected: "Actual body",
		},
		{
			name:     "unterminated_script_swallowed",
			input:    "Before<script>var x = 1;",
			expected: "Before",
		},
		{
			name:     "newlines_collapsed",
			input:    "Line one\n\n\n\n\nLine two",
			expected: "Line one\n\nLine two",
		},
		{
			name:     "surrounding_whitespace_trimmed",
			input:    "  \n\tHello\n ",
			expected: "Hello",
		},
		{
			name:     "malformed_markup_best_effort",
			input:    "<div><p>Broken <b>markup",
			expected: "Broken markup",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, sanitize.Normalize(tc.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Hello, plain text.",
		"Caf&eacute; meeting &amp; budget review",
		"<div><p>Hello <b>there</b></p></div>",
		"<style>.a{}</style>One\n\n\n\nTwo",
		"  padded  ",
	}

	for _, input := range inputs {
		once := sanitize.Normalize(input)
		assert.Equal(t, once, sanitize.Normalize(once), "input: %q", input)
	}
}
