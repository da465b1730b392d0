// Package conversation walks users through the dialogue graph and merges
// their final free-form messages into a single report.
package conversation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"siriusbot/dialogue"
)

// Key identifies one user's conversation inside one chat.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// Sender describes the user who started a conversation.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// Mention renders the sender the way staff chats see it.
func (s Sender) Mention() string {
	name := s.FirstName
	if s.Username != "" {
		name = "@" + s.Username
	}
	return fmt.Sprintf("%s, tg://user?id=%d", name, s.ID)
}

// Phase is the position of a conversation in its lifecycle.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseAwaitingAnswer
	PhaseAwaitingSubmission
	PhaseFlushing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseAwaitingSubmission:
		return "awaiting_submission"
	case PhaseFlushing:
		return "flushing"
	case PhaseClosed:
		return "closed"
	default:
		return "none"
	}
}

// Fields holds recorded answers in the order they were first given.
type Fields struct {
	order  []string
	values map[string]string
}

// Get returns the answer recorded for name.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Set records value under name unless name already holds an answer.
func (f *Fields) Set(name, value string) bool {
	if _, ok := f.values[name]; ok {
		return false
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[name] = value
	f.order = append(f.order, name)
	return true
}

// Len returns the number of recorded fields.
func (f Fields) Len() int {
	return len(f.order)
}

// Each calls fn for every field in recording order.
func (f Fields) Each(fn func(name, value string)) {
	for _, name := range f.order {
		fn(name, f.values[name])
	}
}

func (f Fields) clone() Fields {
	out := Fields{
		order:  append([]string(nil), f.order...),
		values: make(map[string]string, len(f.values)),
	}
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

// Fragment is one inbound message of the free-form report.
type Fragment struct {
	Text    string
	PhotoID string
}

func (f Fragment) empty() bool {
	return f.Text == "" && f.PhotoID == ""
}

type buffer struct {
	text     string
	photoIDs []string
	armed    bool
}

// Conversation is the traversal state of one Key. All fields are guarded by mu.
type Conversation struct {
	ID     string
	Key    Key
	Sender Sender

	mu          sync.Mutex
	phase       Phase
	current     *dialogue.Node
	pendingNext *dialogue.Node
	fields      Fields
	destination int64
	buf         buffer
}

func newConversation(key Key, sender Sender) *Conversation {
	return &Conversation{
		ID:     uuid.NewString(),
		Key:    key,
		Sender: sender,
	}
}

// Phase returns the current lifecycle phase.
func (c *Conversation) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Destination returns the chat the report will be routed to, 0 if unset.
func (c *Conversation) Destination() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destination
}

// Fields returns a copy of the recorded answers.
func (c *Conversation) Fields() Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields.clone()
}

// Current returns the node last presented.
func (c *Conversation) Current() *dialogue.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Conversation) close() {
	c.mu.Lock()
	c.phase = PhaseClosed
	c.mu.Unlock()
}
