package main

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"siriusbot/chats"
	"siriusbot/conversation"
	"siriusbot/telegram"
)

const (
	pollTimeout   = 30 // seconds
	retryDelay    = 2 * time.Second
	handleTimeout = 60 * time.Second
)

// poller is the part of the Bot API the update loop reads from.
type poller interface {
	GetUpdates(ctx context.Context, offset, timeout int) ([]telegram.Update, error)
	SetMyCommands(ctx context.Context, commands []telegram.BotCommand) error
}

// Bot routes incoming updates to the dialogue machine and the aggregator.
type Bot struct {
	api        poller
	registry   *chats.Registry
	store      *conversation.Store
	machine    *conversation.Machine
	aggregator *conversation.Aggregator
	messages   conversation.Messages
	log        *zap.Logger

	handlers sync.WaitGroup
}

// Run registers the bot commands and long-polls until ctx is cancelled. Each
// update is handled on its own goroutine; Run returns once they have finished.
func (b *Bot) Run(ctx context.Context) error {
	defer b.handlers.Wait()

	commands := []telegram.BotCommand{{Command: "start", Description: b.messages.StartCommand}}
	if err := b.api.SetMyCommands(ctx, commands); err != nil {
		b.log.Warn("set commands failed", zap.Error(err))
	}

	b.log.Info("starting long-polling")
	offset := 0
	for {
		updates, err := b.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Error("getUpdates error", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, u := range updates {
			u := u
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handlers.Add(1)
			go func() {
				defer b.handlers.Done()
				b.handleUpdate(ctx, u)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u telegram.Update) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch {
	case u.MyChatMember != nil:
		b.handleMembership(ctx, u.MyChatMember)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

// handleMembership records the groups the bot is added to as destinations.
func (b *Bot) handleMembership(ctx context.Context, upd *telegram.ChatMemberUpdated) {
	if !upd.Joined() || upd.Chat.Type == "private" {
		return
	}
	name := upd.Chat.Title
	if name == "" {
		name = strconv.FormatInt(upd.Chat.ID, 10)
	}
	if err := b.registry.Add(ctx, name, upd.Chat.ID); err != nil {
		b.log.Warn("chat not persisted", zap.String("title", name), zap.Error(err))
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	if b.registry.Contains(msg.Chat.ID) {
		b.log.Debug("ignoring destination chat", zap.Int64("chat_id", msg.Chat.ID))
		return
	}

	key := conversation.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	if isStartTrigger(msg.Text) || strings.EqualFold(strings.TrimSpace(msg.Text), b.messages.StartButton) {
		sender := conversation.Sender{ID: msg.From.ID, Username: msg.From.Username, FirstName: msg.From.FirstName}
		b.report(key, "start", b.machine.Start(ctx, key, sender))
		return
	}

	switch phase := b.store.Phase(key); phase {
	case conversation.PhaseAwaitingAnswer:
		b.report(key, "answer", b.machine.Answer(ctx, key, msg.Text))
	case conversation.PhaseAwaitingSubmission, conversation.PhaseFlushing:
		frag := conversation.Fragment{Text: msg.Body(), PhotoID: msg.LargestPhoto()}
		b.report(key, "submit", b.aggregator.Submit(ctx, key, frag))
	default:
		b.log.Debug("message outside a conversation", zap.String("key", key.String()), zap.Stringer("phase", phase))
	}
}

// report logs err. Phase races with a concurrent flush or restart are expected.
func (b *Bot) report(key conversation.Key, op string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrWrongPhase), errors.Is(err, conversation.ErrUnknownConversation):
		b.log.Debug(op+" dropped", zap.String("key", key.String()), zap.Error(err))
	default:
		b.log.Warn(op+" failed", zap.String("key", key.String()), zap.Error(err))
	}
}

// isStartTrigger matches /start, /start@botname (with or without arguments)
// and the keyboard button text "start" in any case.
func isStartTrigger(text string) bool {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "start") {
		return true
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.EqualFold(cmd, "/start")
}
