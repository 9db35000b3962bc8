package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/reply-agent/internal/agent"
	"github.com/hal9000y/reply-agent/internal/llm"
)

// scriptedBackend replays a fixed sequence of assistant turns.
type scriptedBackend struct {
	turns []func() (*llm.Message, error)
	calls [][]llm.Message
}

func (b *scriptedBackend) Chat(_ context.Context, messages []llm.Message, _ []llm.ToolDef) (*llm.Message, error) {
	b.calls = append(b.calls, append([]llm.Message(nil), messages...))
	if len(b.turns) == 0 {
		return nil, errors.New("script exhausted")
	}
	turn := b.turns[0]
	b.turns = b.turns[1:]
	return turn()
}

func reply(content string) func() (*llm.Message, error) {
	return func() (*llm.Message, error) {
		return &llm.Message{Role: "assistant", Content: content}, nil
	}
}

func fail(msg string) func() (*llm.Message, error) {
	return func() (*llm.Message, error) {
		return nil, errors.New(msg)
	}
}

func toolTurn(calls ...llm.ToolCall) func() (*llm.Message, error) {
	return func() (*llm.Message, error) {
		return &llm.Message{Role: "assistant", ToolCalls: calls}, nil
	}
}

func toolCall(id, name, args string) llm.ToolCall {
	c := llm.ToolCall{ID: id, Type: "function"}
	c.Function.Name = name
	c.Function.Arguments = args
	return c
}

func newAgent(backend agent.Backend, mb agent.Mailbox) *agent.Agent {
	a := agent.New(backend, agent.NewTools(mb))
	a.RetryDelay = time.Millisecond
	return a
}

func TestAdvancePlainAnswer(t *testing.T) {
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){reply("Here are your options.")}}
	conv := agent.NewConversation("be helpful")
	conv.AddUser("hi")

	out, err := newAgent(backend, &mockMailbox{}).Advance(context.Background(), conv)

	require.NoError(t, err)
	assert.Equal(t, "Here are your options.", out)

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
}

func TestAdvanceExecutesToolCallsInOrder(t *testing.T) {
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){
		toolTurn(
			toolCall("c1", agent.ToolSearchEmails, `{"query":"budget"}`),
			toolCall("c2", "bogus_tool", `{}`),
		),
		reply("Done."),
	}}

	mb := &mockMailbox{
		searchFn: func(_ context.Context, _ string, _ int64) ([]*gmail.Message, error) {
			return nil, nil
		},
	}

	conv := agent.NewConversation("sys")
	conv.AddUser("find budget mail")

	out, err := newAgent(backend, mb).Advance(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "Done.", out)

	msgs := conv.Messages()
	// system, user, assistant(tool calls), tool, tool, assistant
	require.Len(t, msgs, 6)

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, "No emails found for 'budget'. Please try different keywords.", msgs[3].Content)

	assert.Equal(t, "tool", msgs[4].Role)
	assert.Equal(t, "c2", msgs[4].ToolCallID)
	assert.Equal(t, "Unknown tool: bogus_tool", msgs[4].Content)

	// The second request must carry the tool results.
	require.Len(t, backend.calls, 2)
	assert.Len(t, backend.calls[1], 5)
}

func TestAdvanceToolFailureStaysInLoop(t *testing.T) {
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){
		toolTurn(toolCall("c1", agent.ToolReadEmail, `{"message_id":"m1"}`)),
		reply("Could not read that email."),
	}}

	mb := &mockMailbox{
		messageFn: func(_ context.Context, _ string) (*gmail.Message, error) {
			return nil, errors.New("permission denied")
		},
	}

	conv := agent.NewConversation("sys")
	conv.AddUser("read m1")

	out, err := newAgent(backend, mb).Advance(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "Could not read that email.", out)

	msgs := conv.Messages()
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[3].Content, "Error running read_email_content:")
	assert.Contains(t, msgs[3].Content, "permission denied")
}

func TestAdvanceSynthesizesMissingCallIDs(t *testing.T) {
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){
		toolTurn(toolCall("", "nope", `{}`)),
		reply("ok"),
	}}

	conv := agent.NewConversation("sys")
	conv.AddUser("go")

	_, err := newAgent(backend, &mockMailbox{}).Advance(context.Background(), conv)
	require.NoError(t, err)

	msgs := conv.Messages()
	require.Len(t, msgs, 5)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.NotEmpty(t, msgs[2].ToolCalls[0].ID)
	assert.Equal(t, msgs[2].ToolCalls[0].ID, msgs[3].ToolCallID)
}

func TestAdvanceRetriesTransientFailure(t *testing.T) {
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){
		fail("502 bad gateway"),
		fail("502 bad gateway"),
		reply("Recovered."),
	}}

	conv := agent.NewConversation("sys")
	conv.AddUser("hi")

	out, err := newAgent(backend, &mockMailbox{}).Advance(context.Background(), conv)

	require.NoError(t, err)
	assert.Equal(t, "Recovered.", out)
	assert.Len(t, backend.calls, 3)
}

func TestAdvanceGivesUpAfterRetryCeiling(t *testing.T) {
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){
		fail("down"), fail("down"), fail("down"), reply("never reached"),
	}}

	conv := agent.NewConversation("sys")
	conv.AddUser("hi")

	_, err := newAgent(backend, &mockMailbox{}).Advance(context.Background(), conv)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, backend.calls, 3)
}

func TestAdvanceStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &scriptedBackend{turns: []func() (*llm.Message, error){
		func() (*llm.Message, error) {
			cancel()
			return nil, errors.New("connection reset")
		},
	}}

	conv := agent.NewConversation("sys")
	conv.AddUser("hi")

	_, err := newAgent(backend, &mockMailbox{}).Advance(ctx, conv)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, backend.calls, 1)
}
