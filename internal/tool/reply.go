// Package tool exposes the reply-agent tool set over the Model Context
// Protocol, so MCP clients can use the same sanitized mailbox
// operations the interactive agent uses.
package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/reply-agent/internal/agent"
)

// SearchEmailsRequest is the input of the search_emails tool.
type SearchEmailsRequest struct {
	Query string `json:"query" jsonschema:"the Gmail search query"`
}

// SearchEmailsResponse carries formatted result blocks, one per thread.
type SearchEmailsResponse struct {
	Results string `json:"results" jsonschema:"formatted search results, one block per thread"`
}

// ReadEmailRequest is the input of the read_email_content tool.
type ReadEmailRequest struct {
	MessageID string `json:"message_id" jsonschema:"the Gmail message ID"`
}

// ReadEmailResponse carries the sanitized content of the thread's first message.
type ReadEmailResponse struct {
	Content string `json:"content" jsonschema:"sanitized email content with headers"`
}

// SendReplyRequest is the input of the send_reply tool.
type SendReplyRequest struct {
	To        string `json:"to" jsonschema:"recipient email address"`
	Subject   string `json:"subject" jsonschema:"email subject"`
	Body      string `json:"body" jsonschema:"email body text"`
	MessageID string `json:"message_id,omitempty" jsonschema:"original Message-ID header for threading"`
	ThreadID  string `json:"thread_id,omitempty" jsonschema:"Gmail thread ID to reply within"`
}

// SendReplyResponse confirms the send.
type SendReplyResponse struct {
	Status string `json:"status" jsonschema:"confirmation text"`
}

type replyToolSet interface {
	SearchEmails(ctx context.Context, query string) (string, error)
	ReadEmail(ctx context.Context, messageID string) (string, error)
	SendReply(ctx context.Context, args agent.SendArgs) (string, error)
}

// Handler adapts the agent tool set to MCP tool handlers.
type Handler struct {
	tools replyToolSet
}

func NewHandler(tools replyToolSet) *Handler {
	return &Handler{tools: tools}
}

// NewServer builds the MCP server exposing the three reply tools.
func NewServer(h *Handler) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "reply-agent", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        agent.ToolSearchEmails,
		Description: "Search Gmail for emails matching a subject or query.",
	}, h.SearchEmails)

	mcp.AddTool(server, &mcp.Tool{
		Name:        agent.ToolReadEmail,
		Description: "Read the full content of an email by its ID.",
	}, h.ReadEmail)

	mcp.AddTool(server, &mcp.Tool{
		Name:        agent.ToolSendReply,
		Description: "Send a reply to an email thread.",
	}, h.SendReply)

	return server
}

func (h *Handler) SearchEmails(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchEmailsRequest,
) (*mcp.CallToolResult, SearchEmailsResponse, error) {
	out, err := h.tools.SearchEmails(ctx, input.Query)
	if err != nil {
		return nil, SearchEmailsResponse{}, fmt.Errorf("search emails failed: %w", err)
	}

	return nil, SearchEmailsResponse{Results: out}, nil
}

func (h *Handler) ReadEmail(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReadEmailRequest,
) (*mcp.CallToolResult, ReadEmailResponse, error) {
	out, err := h.tools.ReadEmail(ctx, input.MessageID)
	if err != nil {
		return nil, ReadEmailResponse{}, fmt.Errorf("read email failed: %w", err)
	}

	return nil, ReadEmailResponse{Content: out}, nil
}

func (h *Handler) SendReply(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SendReplyRequest,
) (*mcp.CallToolResult, SendReplyResponse, error) {
	out, err := h.tools.SendReply(ctx, agent.SendArgs{
		To:        input.To,
		Subject:   input.Subject,
		Body:      input.Body,
		MessageID: input.MessageID,
		ThreadID:  input.ThreadID,
	})
	if err != nil {
		return nil, SendReplyResponse{}, fmt.Errorf("send reply failed: %w", err)
	}

	return nil, SendReplyResponse{Status: out}, nil
}
