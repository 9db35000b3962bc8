package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/reply-agent/internal/fuzzy"
	"github.com/hal9000y/reply-agent/internal/llm"
	"github.com/hal9000y/reply-agent/internal/mailbox"
	"github.com/hal9000y/reply-agent/internal/sanitize"
)

const (
	searchMaxResults = 10

	// Fallback search used when the primary query matches nothing:
	// retry with a short prefix of the query and harvest subjects to
	// feed the typo suggester.
	broadPrefixRunes = 3
	broadMaxResults  = 5
	broadMaxSubjects = 3
)

// Mailbox is the provider capability the tools operate on. It is
// injected, never reached through package state.
type Mailbox interface {
	Search(ctx context.Context, query string, maxResults int64) ([]*gmail.Message, error)
	Message(ctx context.Context, msgID string) (*gmail.Message, error)
	Thread(ctx context.Context, threadID string) ([]*gmail.Message, error)
	Profile(ctx context.Context) (string, error)
	Send(ctx context.Context, reply mailbox.OutgoingReply) error
}

// EmailSummary is one search result, one per distinct thread.
type EmailSummary struct {
	MessageID       string
	ThreadID        string
	HeaderMessageID string
	Sender          string
	Subject         string
	Preview         string
	Note            string
}

// Tools executes the model-requested tool calls against a mailbox.
type Tools struct {
	mb Mailbox
}

// NewTools wires the tool set to a mailbox.
func NewTools(mb Mailbox) *Tools {
	return &Tools{mb: mb}
}

type searchArgs struct {
	Query string `json:"query"`
}

type readArgs struct {
	MessageID string `json:"message_id"`
}

// SendArgs is the typed payload of a send_reply call.
type SendArgs struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

// Execute dispatches a single tool call and always returns result text:
// execution failures and unknown tool names come back as error text for
// the model to react to, never as a crash of the loop.
func (t *Tools) Execute(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name

	switch name {
	case ToolSearchEmails:
		var args searchArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error running %s: %v", name, err)
		}
		out, err := t.SearchEmails(ctx, args.Query)
		if err != nil {
			return fmt.Sprintf("Error running %s: %v", name, err)
		}
		return out

	case ToolReadEmail:
		var args readArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error running %s: %v", name, err)
		}
		out, err := t.ReadEmail(ctx, args.MessageID)
		if err != nil {
			return fmt.Sprintf("Error running %s: %v", name, err)
		}
		return out

	case ToolSendReply:
		var args SendArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error running %s: %v", name, err)
		}
		out, err := t.SendReply(ctx, args)
		if err != nil {
			return fmt.Sprintf("Error running %s: %v", name, err)
		}
		return out

	default:
		return fmt.Sprintf("Unknown tool: %s", name)
	}
}

// SearchEmails searches the mailbox and returns one formatted block per
// distinct thread, with an advisory note when the owner already replied
// or the thread is an unanswered outgoing email. A fruitless search
// falls back to a broadened query plus a typo suggestion.
func (t *Tools) SearchEmails(ctx context.Context, query string) (string, error) {
	refs, err := t.mb.Search(ctx, query, searchMaxResults)
	if err != nil {
		return "", fmt.Errorf("search messages failed: %w", err)
	}

	if len(refs) == 0 {
		return t.noResults(ctx, query)
	}

	selfEmail, err := t.mb.Profile(ctx)
	if err != nil {
		return "", fmt.Errorf("get profile failed: %w", err)
	}

	seenThreads := map[string]bool{}
	var summaries []EmailSummary

	for _, ref := range refs {
		msg, err := t.mb.Message(ctx, ref.Id)
		if err != nil {
			return "", fmt.Errorf("get message %q failed: %w", ref.Id, err)
		}

		if seenThreads[msg.ThreadId] {
			continue
		}
		seenThreads[msg.ThreadId] = true

		summary := EmailSummary{
			MessageID:       ref.Id,
			ThreadID:        msg.ThreadId,
			HeaderMessageID: mailbox.Header(msg, "Message-ID"),
			Sender:          headerOr(msg, "From", "Unknown"),
			Subject:         headerOr(msg, "Subject", "No Subject"),
			Preview:         sanitize.Sanitize(mailbox.CleanSnippet(msg.Snippet)).Text,
			Note:            t.threadNote(ctx, msg.ThreadId, selfEmail),
		}
		summaries = append(summaries, summary)
	}

	return FormatSummaries(summaries), nil
}

// threadNote classifies the thread and renders the advisory note the
// model is instructed to act on. Classification failures degrade to no
// note rather than failing the whole search.
func (t *Tools) threadNote(ctx context.Context, threadID, selfEmail string) string {
	msgs, err := t.mb.Thread(ctx, threadID)
	if err != nil {
		return ""
	}

	state := mailbox.Classify(msgs, selfEmail)
	switch {
	case state.AlreadyReplied:
		return fmt.Sprintf("[NOTE: You already replied to this thread. Your last reply was: \"%s\"]", state.LastReplySnippet)
	case state.OutgoingUnanswered:
		return fmt.Sprintf("[NOTE: This email was sent by you to %s and has not received a reply yet.]", state.Recipient)
	default:
		return ""
	}
}

func (t *Tools) noResults(ctx context.Context, query string) (string, error) {
	prefix := []rune(query)
	if len(prefix) > broadPrefixRunes {
		prefix = prefix[:broadPrefixRunes]
	}

	broad, err := t.mb.Search(ctx, string(prefix), broadMaxResults)
	if err == nil && len(broad) > 0 {
		var subjects []string
		for i, ref := range broad {
			if i >= broadMaxSubjects {
				break
			}
			msg, err := t.mb.Message(ctx, ref.Id)
			if err != nil {
				continue
			}
			if subject := mailbox.Header(msg, "Subject"); subject != "" {
				subjects = append(subjects, subject)
			}
		}

		if suggestion := fuzzy.Suggest(query, subjects); suggestion != "" {
			return fmt.Sprintf("No emails found for '%s'. Did you mean '%s'? Try searching again.", query, suggestion), nil
		}
	}

	return fmt.Sprintf("No emails found for '%s'. Please try different keywords.", query), nil
}

// FormatSummaries renders search results in the fixed block layout the
// model and the CLI both parse. Field order and the blank line between
// blocks are load-bearing.
func FormatSummaries(summaries []EmailSummary) string {
	blocks := make([]string, 0, len(summaries))
	for _, s := range summaries {
		block := fmt.Sprintf("ID: %s\nThread-ID: %s\nMessage-ID: %s\nFrom: %s\nSubject: %s\nPreview: %s",
			s.MessageID, s.ThreadID, s.HeaderMessageID, s.Sender, s.Subject, s.Preview)
		if s.Note != "" {
			block += "\n" + s.Note
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

// ReadEmail returns the first message of the thread the given message
// belongs to, with its body run through the sanitization pipeline. The
// first message carries the original sender/recipient, which the model
// needs to address the reply correctly.
func (t *Tools) ReadEmail(ctx context.Context, messageID string) (string, error) {
	msg, err := t.mb.Message(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("get message %q failed: %w", messageID, err)
	}

	msgs, err := t.mb.Thread(ctx, msg.ThreadId)
	if err != nil {
		return "", fmt.Errorf("get thread %q failed: %w", msg.ThreadId, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("thread %q has no messages", msg.ThreadId)
	}

	first := msgs[0]
	sender := headerOr(first, "From", "Unknown")
	to := mailbox.Header(first, "To")
	date := headerOr(first, "Date", "Unknown")
	subject := headerOr(first, "Subject", "No Subject")
	body := sanitize.Sanitize(mailbox.PlainTextBody(first.Payload)).Text

	toLine := ""
	if to != "" {
		toLine = "\nTo: " + to
	}

	note := ""
	if selfEmail, err := t.mb.Profile(ctx); err == nil && selfEmail != "" &&
		strings.Contains(strings.ToLower(sender), selfEmail) {
		note = fmt.Sprintf("\n[NOTE: You sent this email to %s. Draft a follow-up to %s.]", to, to)
	}

	return fmt.Sprintf("From: %s%s\nDate: %s\nSubject: %s%s\n\n%s",
		sender, toLine, date, subject, note, body), nil
}

// SendReply sends the reply through the mailbox, threading it with the
// original message when ids are supplied.
func (t *Tools) SendReply(ctx context.Context, args SendArgs) (string, error) {
	reply := mailbox.OutgoingReply{
		To:        strings.TrimSpace(args.To),
		Subject:   strings.TrimSpace(args.Subject),
		Body:      args.Body,
		InReplyTo: args.MessageID,
		ThreadID:  args.ThreadID,
	}

	if err := t.mb.Send(ctx, reply); err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}

	return fmt.Sprintf("Reply sent successfully to %s", reply.To), nil
}

func headerOr(msg *gmail.Message, name, fallback string) string {
	if v := mailbox.Header(msg, name); v != "" {
		return v
	}
	return fallback
}
