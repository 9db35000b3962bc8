package mailbox

import (
	"strings"

	"google.golang.org/api/gmail/v1"
)

// ThreadState is the reply-state of a thread relative to the account
// owner. It is derived fresh from the thread's messages on every call
// and never cached; mailbox state can change between calls.
type ThreadState struct {
	// AlreadyReplied is true when the owner authored any message
	// after the thread's first one.
	AlreadyReplied bool

	// LastReplySnippet is a cleaned, truncated snippet of the owner's
	// latest reply; set exactly when AlreadyReplied is true.
	LastReplySnippet string

	// OutgoingUnanswered is true for a thread consisting of a single
	// message sent by the owner.
	OutgoingUnanswered bool

	// Recipient is the To header of the owner's outgoing message; set
	// when OutgoingUnanswered is true.
	Recipient string
}

// Classify derives the reply-state of a chronologically ordered
// thread. Self-authorship means the From header contains selfEmail,
// case-insensitively, matching how mail headers embed addresses.
//
// A thread that is just one message sent by the owner is an outgoing
// email awaiting an answer, never an "already replied" situation. The
// replied flag and its snippet come from one scan over the messages
// after index 0, so the two can never disagree.
func Classify(msgs []*gmail.Message, selfEmail string) ThreadState {
	self := strings.ToLower(strings.TrimSpace(selfEmail))
	if len(msgs) == 0 || self == "" {
		return ThreadState{}
	}

	firstSender := strings.ToLower(Header(msgs[0], "From"))
	selfCreated := strings.Contains(firstSender, self)

	if selfCreated && len(msgs) == 1 {
		return ThreadState{
			OutgoingUnanswered: true,
			Recipient:          Header(msgs[0], "To"),
		}
	}

	var lastOwn *gmail.Message
	for _, msg := range msgs[1:] {
		if strings.Contains(strings.ToLower(Header(msg, "From")), self) {
			lastOwn = msg
		}
	}
	if lastOwn == nil {
		return ThreadState{}
	}

	return ThreadState{
		AlreadyReplied:   true,
		LastReplySnippet: CleanSnippet(lastOwn.Snippet),
	}
}
