package mailbox

import (
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"google.golang.org/api/gmail/v1"
)

const noContent = "No content found."

// SnippetLimit is the maximum snippet length before the ellipsis.
const SnippetLimit = 120

// Header returns the value of a named header, or "" when absent.
func Header(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}

	return ""
}

// PlainTextBody extracts the plain-text body from a message payload.
// Single-part payloads are decoded directly; multipart payloads are
// searched for a text/plain part first, then recursively.
func PlainTextBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return noContent
	}

	if len(payload.Parts) == 0 {
		if payload.Body != nil && payload.Body.Data != "" {
			return decodeBase64URL(payload.Body.Data)
		}

		return noContent
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBase64URL(part.Body.Data)
		}
	}

	for _, part := range payload.Parts {
		if body := PlainTextBody(part); body != noContent {
			return body
		}
	}

	return noContent
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return data
		}
	}

	return string(decoded)
}

// CleanSnippet decodes HTML entities in a provider snippet and
// truncates it to SnippetLimit characters. Truncation happens after
// decoding so an entity is never cut in half, and the cut backs up to
// the last space when that space falls past half the limit.
func CleanSnippet(raw string) string {
	decoded := html.UnescapeString(raw)
	runes := []rune(decoded)
	if len(runes) <= SnippetLimit {
		return decoded
	}

	truncated := string(runes[:SnippetLimit])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > SnippetLimit/2 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}

// OutgoingReply is the envelope for a reply to an existing thread.
type OutgoingReply struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string // original Message-ID header, when known
	ThreadID  string
}

// Raw renders the reply as a base64url-encoded RFC 822 message. The
// subject gains a "Re: " prefix unless it already carries one, and
// In-Reply-To/References are set when the original message id is
// known, so providers keep the reply in the same thread.
func (r OutgoingReply) Raw() string {
	subject := strings.TrimSpace(r.Subject)
	if !strings.HasPrefix(subject, "Re:") {
		subject = "Re: " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.TrimSpace(r.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if r.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", r.InReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", r.InReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(r.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
