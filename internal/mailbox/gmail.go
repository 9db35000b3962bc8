// Package mailbox provides Gmail access for the reply agent: search,
// thread and message retrieval, profile lookup and sending.
package mailbox

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/reply-agent/internal/auth"
)

const gmailUserID = "me"

// NewGmail creates a Gmail provider bound to the given credential
// capability. A fresh service is derived from the token on every call.
func NewGmail(cfg *oauth2.Config, tok *auth.Token) *Gmail {
	return &Gmail{
		cfg: cfg,
		tok: tok,
	}
}

// Gmail talks to the Gmail API.
type Gmail struct {
	cfg *oauth2.Config
	tok *auth.Token
}

// Search returns message refs (id + thread id) matching the query.
func (m *Gmail) Search(ctx context.Context, query string, maxResults int64) ([]*gmail.Message, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	result, err := svc.Users.Messages.List(gmailUserID).
		Q(query).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.List failed: %w", err)
	}

	return result.Messages, nil
}

// Message fetches a full message by id.
func (m *Gmail) Message(ctx context.Context, msgID string) (*gmail.Message, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	msg, err := svc.Users.Messages.Get(gmailUserID, strings.TrimSpace(msgID)).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Get failed: %w", err)
	}

	return msg, nil
}

// Thread fetches a thread's messages in chronological order, as
// delivered by the provider.
func (m *Gmail) Thread(ctx context.Context, threadID string) ([]*gmail.Message, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	thread, err := svc.Users.Threads.Get(gmailUserID, threadID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("threads.Get failed: %w", err)
	}

	return thread.Messages, nil
}

// Profile returns the account owner's email address.
func (m *Gmail) Profile(ctx context.Context) (string, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return "", fmt.Errorf("newSvc failed: %w", err)
	}

	profile, err := svc.Users.GetProfile(gmailUserID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("getProfile failed: %w", err)
	}

	return strings.ToLower(profile.EmailAddress), nil
}

// Send delivers an outgoing reply, threading it when a thread id is
// present.
func (m *Gmail) Send(ctx context.Context, reply OutgoingReply) error {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return fmt.Errorf("newSvc failed: %w", err)
	}

	msg := &gmail.Message{
		Raw:      reply.Raw(),
		ThreadId: reply.ThreadID,
	}

	if _, err := svc.Users.Messages.Send(gmailUserID, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("messages.Send failed: %w", err)
	}

	return nil
}

// DisplayName derives the user's display name from the From header of
// a recent sent message. Falls back to "Your Name" when none can be
// found; drafting still works, the signature is just generic.
func (m *Gmail) DisplayName(ctx context.Context) string {
	const fallback = "Your Name"

	svc, err := m.newSvc(ctx)
	if err != nil {
		return fallback
	}

	profile, err := svc.Users.GetProfile(gmailUserID).Context(ctx).Do()
	if err != nil {
		return fallback
	}
	selfEmail := strings.ToLower(profile.EmailAddress)

	sent, err := svc.Users.Messages.List(gmailUserID).
		LabelIds("SENT").
		MaxResults(10).
		Context(ctx).
		Do()
	if err != nil {
		return fallback
	}

	for _, ref := range sent.Messages {
		msg, err := svc.Users.Messages.Get(gmailUserID, ref.Id).
			Format("METADATA").
			MetadataHeaders("From").
			Context(ctx).
			Do()
		if err != nil {
			continue
		}

		if name := senderName(Header(msg, "From"), selfEmail); name != "" {
			return name
		}
	}

	return fallback
}

// senderName extracts the display name from a From header shaped like
// `Jane Doe <jane@example.com>` when the address belongs to self.
func senderName(from, selfEmail string) string {
	if !strings.Contains(from, "<") || !strings.Contains(strings.ToLower(from), selfEmail) {
		return ""
	}

	name := strings.TrimSpace(from[:strings.Index(from, "<")])
	name = strings.Trim(name, "\"")
	if name == "" || strings.Contains(name, "@") {
		return ""
	}

	return name
}

func (m *Gmail) newSvc(ctx context.Context) (*gmail.Service, error) {
	t, err := m.tok.OAuthToken()
	if err != nil {
		return nil, fmt.Errorf("tok.OAuthToken failed: %w", err)
	}

	clt := m.cfg.Client(ctx, t)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(clt))
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}
