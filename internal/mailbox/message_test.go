package mailbox_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/reply-agent/internal/mailbox"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestHeader(t *testing.T) {
	msg := threadMsg("a@b.c", "d@e.f", "")

	assert.Equal(t, "a@b.c", mailbox.Header(msg, "From"))
	assert.Equal(t, "", mailbox.Header(msg, "Subject"))
	assert.Equal(t, "", mailbox.Header(nil, "From"))
	assert.Equal(t, "", mailbox.Header(&gmail.Message{}, "From"))
}

func TestPlainTextBody(t *testing.T) {
	cases := []struct {
		name     string
		payload  *gmail.MessagePart
		expected string
	}{
		{
			name: "single_part",
			payload: &gmail.MessagePart{
				Body: &gmail.MessagePartBody{Data: b64("plain body")},
			},
			expected: "plain body",
		},
		{
			name: "multipart_prefers_text_plain",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html</p>")}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("the text part")}},
				},
			},
			expected: "the text part",
		},
		{
			name: "nested_multipart",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("nested text")}},
						},
					},
				},
			},
			expected: "nested text",
		},
		{
			name:     "empty_payload",
			payload:  &gmail.MessagePart{},
			expected: "No content found.",
		},
		{
			name:     "nil_payload",
			payload:  nil,
			expected: "No content found.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, mailbox.PlainTextBody(tc.payload))
		})
	}
}

func TestCleanSnippet(t *testing.T) {
	t.Run("short_passthrough", func(t *testing.T) {
		assert.Equal(t, "hello there", mailbox.CleanSnippet("hello there"))
	})

	t.Run("entities_decoded", func(t *testing.T) {
		assert.Equal(t, "Q3 & Q4 plans", mailbox.CleanSnippet("Q3 &amp; Q4 plans"))
	})

	t.Run("long_truncated_at_word_boundary", func(t *testing.T) {
		got := mailbox.CleanSnippet(strings.Repeat("status update ", 20))

		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, len([]rune(got)), mailbox.SnippetLimit+3)
		assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, "..."), " "))
	})
}

func TestOutgoingReplyRaw(t *testing.T) {
	reply := mailbox.OutgoingReply{
		To:        "client@corp.example",
		Subject:   "Project proposal",
		Body:      "Sounds good, let's proceed.",
		InReplyTo: "<orig-123@corp.example>",
		ThreadID:  "t-1",
	}

	decoded, err := base64.URLEncoding.DecodeString(reply.Raw())
	require.NoError(t, err)
	raw := string(decoded)

	assert.Contains(t, raw, "To: client@corp.example\r\n")
	assert.Contains(t, raw, "Subject: Re: Project proposal\r\n")
	assert.Contains(t, raw, "In-Reply-To: <orig-123@corp.example>\r\n")
	assert.Contains(t, raw, "References: <orig-123@corp.example>\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nSounds good, let's proceed."))
}

func TestOutgoingReplyRawKeepsExistingPrefix(t *testing.T) {
	reply := mailbox.OutgoingReply{To: "a@b.c", Subject: "Re: Project proposal", Body: "ok then, will do"}

	decoded, err := base64.URLEncoding.DecodeString(reply.Raw())
	require.NoError(t, err)

	assert.Contains(t, string(decoded), "Subject: Re: Project proposal\r\n")
	assert.NotContains(t, string(decoded), "Re: Re:")
	assert.NotContains(t, string(decoded), "In-Reply-To")
}
