package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hal9000y/reply-agent/internal/llm"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// Backend is the model side of the loop: one request, one assistant
// message back, either terminal text or tool calls.
type Backend interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Message, error)
}

// Agent advances a conversation against a backend, executing tool
// calls until the model produces a plain answer.
type Agent struct {
	backend Backend
	tools   *Tools
	schema  []llm.ToolDef

	// RetryAttempts and RetryDelay control retry of transient backend
	// failures. Completed tool side effects are never retried; only
	// the model round-trip is.
	RetryAttempts int
	RetryDelay    time.Duration
}

// New builds an agent over a backend and tool set.
func New(backend Backend, tools *Tools) *Agent {
	return &Agent{
		backend:       backend,
		tools:         tools,
		schema:        Schema(),
		RetryAttempts: defaultRetryAttempts,
		RetryDelay:    defaultRetryDelay,
	}
}

// Advance sends the conversation to the backend and executes requested
// tools until a terminal assistant message arrives, returning its text.
// Assistant and tool messages are appended to the conversation in call
// order, each tool result paired to its call id. Tool failures become
// error text in the history; only backend exhaustion or cancellation
// surfaces as an error.
func (a *Agent) Advance(ctx context.Context, conv *Conversation) (string, error) {
	for {
		msg, err := a.chatWithRetry(ctx, conv.Messages())
		if err != nil {
			return "", err
		}

		// A backend may omit call ids; results are paired by id, so
		// synthesize them before the assistant message is recorded.
		for i := range msg.ToolCalls {
			if msg.ToolCalls[i].ID == "" {
				msg.ToolCalls[i].ID = uuid.NewString()
			}
		}
		conv.append(*msg)

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		for _, call := range msg.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			log.Printf("calling tool %s", call.Function.Name)
			result := a.tools.Execute(ctx, call)

			conv.append(llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

func (a *Agent) chatWithRetry(ctx context.Context, messages []llm.Message) (*llm.Message, error) {
	var lastErr error

	for attempt := 1; attempt <= a.RetryAttempts; attempt++ {
		msg, err := a.backend.Chat(ctx, messages, a.schema)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		// Cancellation is not transient.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < a.RetryAttempts {
			log.Printf("model request failed (attempt %d/%d), retrying in %s: %v",
				attempt, a.RetryAttempts, a.RetryDelay, err)
			select {
			case <-time.After(a.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("model backend unavailable after %d attempts: %w", a.RetryAttempts, lastErr)
}
