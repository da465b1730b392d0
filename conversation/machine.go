package conversation

import (
	"context"
	"unicode"

	"go.uber.org/zap"

	"siriusbot/dialogue"
)

// Presenter renders outbound prompts in the user's chat.
type Presenter interface {
	PresentQuestion(ctx context.Context, key Key, text string, choices []string) error
	PresentFreeform(ctx context.Context, key Key, text string) error
	PresentAcknowledgment(ctx context.Context, key Key, text string) error
}

// Machine walks conversations through the dialogue graph.
type Machine struct {
	entry     *dialogue.Node
	store     *Store
	presenter Presenter
	messages  Messages
	log       *zap.Logger
}

// NewMachine creates a Machine starting every conversation at entry.
func NewMachine(entry *dialogue.Node, store *Store, presenter Presenter, messages Messages, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		entry:     entry,
		store:     store,
		presenter: presenter,
		messages:  messages.WithDefaults(),
		log:       log.Named("machine"),
	}
}

// Start discards any previous conversation for key and asks the entry question.
func (m *Machine) Start(ctx context.Context, key Key, sender Sender) error {
	conv := newConversation(key, sender)
	conv.phase = PhaseAwaitingAnswer
	conv.current = m.entry
	conv.pendingNext = m.entry.Next
	m.store.replace(conv)

	m.log.Info("start message",
		zap.String("username", sender.Username),
		zap.Int64("chat_id", key.ChatID),
		zap.String("conversation_id", conv.ID),
		zap.Int("active", m.store.Len()),
	)
	return m.emit(ctx, key, m.entry, false)
}

// Answer applies text to the current question of key's conversation. Invalid
// answers re-ask the question and leave the state untouched.
func (m *Machine) Answer(ctx context.Context, key Key, text string) error {
	conv, ok := m.store.Get(key)
	if !ok {
		return ErrUnknownConversation
	}

	conv.mu.Lock()
	if conv.phase != PhaseAwaitingAnswer {
		conv.mu.Unlock()
		return ErrWrongPhase
	}
	node := conv.current
	next, valid := conv.apply(node, text)
	switch {
	case !valid:
		conv.mu.Unlock()
		m.log.Debug("invalid answer", zap.String("conversation_id", conv.ID), zap.String("question", node.Question))
		m.store.touch(conv)
		return m.emit(ctx, key, node, true)
	case next != nil:
		conv.current = next
		conv.pendingNext = next.Next
		conv.mu.Unlock()
		m.store.touch(conv)
		return m.emit(ctx, key, next, false)
	default:
		conv.phase = PhaseAwaitingSubmission
		dest := conv.destination
		conv.mu.Unlock()
		m.log.Debug("dialogue exhausted", zap.String("conversation_id", conv.ID), zap.Int64("destination", dest))
		m.store.touch(conv)
		return m.presenter.PresentFreeform(ctx, key, m.messages.DescribeProblem)
	}
}

func (m *Machine) emit(ctx context.Context, key Key, node *dialogue.Node, reprompt bool) error {
	text := node.Question
	if reprompt {
		text = node.Reprompt()
	}
	return m.presenter.PresentQuestion(ctx, key, text, node.Labels())
}

// apply validates text against node and records its effects. The caller
// holds c.mu.
func (c *Conversation) apply(node *dialogue.Node, text string) (*dialogue.Node, bool) {
	if node.HasOptions() {
		opt, ok := node.Option(text)
		if !ok {
			return nil, false
		}
		if opt.Destination != 0 {
			c.destination = opt.Destination
		}
		if node.Field != "" {
			c.fields.Set(node.Field, text)
		}
		if opt.Next != nil {
			return opt.Next, true
		}
		return c.pendingNext, true
	}

	if !isDigits(text) {
		return nil, false
	}
	if node.Field != "" {
		c.fields.Set(node.Field, text)
	}
	return c.pendingNext, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
