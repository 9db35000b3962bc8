package agent

import (
	"fmt"

	"github.com/hal9000y/reply-agent/internal/llm"
)

// Closed set of tools the model may request. Dispatch is an exhaustive
// switch over these names; anything else is answered with an
// "Unknown tool" result.
const (
	ToolSearchEmails = "search_emails"
	ToolReadEmail    = "read_email_content"
	ToolSendReply    = "send_reply"
)

const systemPromptFmt = `You are an email assistant. You help users respond to their emails.

When searching for emails, ALWAYS return results in this EXACT format (no markdown, no bold):
ID: <message_id>
Thread-ID: <thread_id>
Message-ID: <message_id_header>
From: <sender>
Subject: <subject>
Preview: <snippet>

One blank line between each email result.
It is critical that Thread-ID is always included in every result — it is used internally by the system.

When the user selects an email:
1. Read its content using read_email_content
2. Draft a professional reply:
   - Extract the sender's name from the "From" field and use it
   - Sign the email with %s
   - Match the tone of the original email
   - Keep it concise and relevant
3. Present the draft between --- markers like this:
---
<draft here>
---
Then ask: "Would you like me to send this reply?"

When user approves:
- Send using send_reply with the thread_id
- For modifications, revise and show updated draft between --- markers again

Important:
- NEVER use markdown bold (**text**) in email listings
- Always include Thread-ID in search results
- Always use thread_id when sending to keep email in same thread
- When reading an email, check the "To" field. If the From is the user and To is someone else, reply TO that person — not back to the user
- The greeting "Dear X" must use the RECIPIENT's name (the person you are writing TO)
- The signature must use the SENDER's name (the user who is sending the reply)
- Never swap these two
- If a NOTE says "This email was sent by you to X and has not received a reply yet", draft a follow-up message addressed TO that recipient X, not to the user`

// SystemPrompt renders the system instruction with the mailbox owner's
// display name, used for signing drafts.
func SystemPrompt(userName string) string {
	return fmt.Sprintf(systemPromptFmt, userName)
}

// Schema declares the three tools exposed to the model.
func Schema() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        ToolSearchEmails,
				Description: "Search Gmail for emails matching a subject or query.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The search query, e.g. 'project proposal follow-up'",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        ToolReadEmail,
				Description: "Read the full content of an email by its ID.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"message_id": map[string]any{
							"type":        "string",
							"description": "The Gmail message ID",
						},
					},
					"required": []string{"message_id"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        ToolSendReply,
				Description: "Send a reply to an email thread.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to":         map[string]any{"type": "string", "description": "Recipient email address"},
						"subject":    map[string]any{"type": "string", "description": "Email subject"},
						"body":       map[string]any{"type": "string", "description": "Email body text"},
						"message_id": map[string]any{"type": "string", "description": "Original email Message-ID header for threading"},
						"thread_id":  map[string]any{"type": "string", "description": "Gmail thread ID to reply within"},
					},
					"required": []string{"to", "subject", "body"},
				},
			},
		},
	}
}
