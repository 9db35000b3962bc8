// Package agent drives the tool-calling conversation between the
// model backend and the mailbox.
package agent

import "github.com/hal9000y/reply-agent/internal/llm"

// Conversation is the append-only message history of one session. It
// is owned by a single session; history is never rewritten in place,
// and a new search thread starts from a fresh Conversation.
type Conversation struct {
	messages []llm.Message
}

// NewConversation seeds a conversation with the system instruction.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{
		messages: []llm.Message{{Role: "system", Content: systemPrompt}},
	}
}

// AddUser appends a user turn.
func (c *Conversation) AddUser(content string) {
	c.messages = append(c.messages, llm.Message{Role: "user", Content: content})
}

// Messages returns the history in order. Callers must treat the
// returned slice as read-only.
func (c *Conversation) Messages() []llm.Message {
	return c.messages
}

func (c *Conversation) append(msg llm.Message) {
	c.messages = append(c.messages, msg)
}
