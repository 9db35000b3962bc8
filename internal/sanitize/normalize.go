// Package sanitize cleans untrusted email content before it is shown
// to the language model.
package sanitize

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	stdhtml "html"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)

// Normalize reduces raw message markup to plain text: decodes
// HTML/XML entities, drops script and style elements including their
// content, strips the remaining tags, collapses runs of three or more
// newlines to two and trims surrounding whitespace. It never fails;
// malformed markup degrades to best-effort stripping.
func Normalize(raw string) string {
	text := stdhtml.UnescapeString(raw)
	text = stripTags(text)
	text = multiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// stripTags walks the markup with the HTML tokenizer, keeping text
// tokens and skipping script/style subtrees. Raw token bytes are used
// for text so entities decoded by Normalize are not decoded twice.
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var buf bytes.Buffer
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.TextToken:
			buf.Write(z.Raw())
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipRawElement(z, tag)
			}
		}
	}
}

func skipRawElement(z *html.Tokenizer, tag string) {
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == tag {
				return
			}
		}
	}
}
