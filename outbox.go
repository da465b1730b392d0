package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"siriusbot/conversation"
	"siriusbot/telegram"
)

// sender is the part of the Bot API the outbox writes through.
type sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (*telegram.Message, error)
	SendMediaGroup(ctx context.Context, chatID int64, media []telegram.InputMediaPhoto) ([]telegram.Message, error)
}

// outbox renders conversation output as Telegram messages.
type outbox struct {
	api      sender
	messages conversation.Messages
	log      *zap.Logger
}

func newOutbox(api sender, messages conversation.Messages, log *zap.Logger) *outbox {
	return &outbox{api: api, messages: messages.WithDefaults(), log: log.Named("outbox")}
}

func (o *outbox) PresentQuestion(ctx context.Context, key conversation.Key, text string, choices []string) error {
	var markup any = telegram.RemoveKeyboard()
	if len(choices) > 0 {
		markup = telegram.Keyboard(choices...)
	}
	_, err := o.api.SendMessage(ctx, key.ChatID, text, markup)
	return err
}

func (o *outbox) PresentFreeform(ctx context.Context, key conversation.Key, text string) error {
	_, err := o.api.SendMessage(ctx, key.ChatID, text, telegram.RemoveKeyboard())
	return err
}

func (o *outbox) PresentAcknowledgment(ctx context.Context, key conversation.Key, text string) error {
	_, err := o.api.SendMessage(ctx, key.ChatID, text, telegram.Keyboard(o.messages.StartButton))
	return err
}

// DispatchReport sends text and photos to destination. Photos go out as one
// photo or as albums of up to telegram.MaxAlbumSize with the text as caption
// of the first. Text too long for a caption is sent on its own first.
func (o *outbox) DispatchReport(ctx context.Context, destination int64, text string, photoIDs []string) error {
	if len(photoIDs) == 0 {
		_, err := o.api.SendMessage(ctx, destination, text, nil)
		return err
	}

	caption := text
	if utf8.RuneCountInString(text) > telegram.MaxCaptionLength {
		if _, err := o.api.SendMessage(ctx, destination, text, nil); err != nil {
			return err
		}
		caption = ""
	}

	o.log.Info("resent message with photo",
		zap.Int64("destination", destination),
		zap.String("photos", strings.Join(photoIDs, ", ")),
	)

	for start := 0; start < len(photoIDs); start += telegram.MaxAlbumSize {
		end := min(start+telegram.MaxAlbumSize, len(photoIDs))
		chunk := photoIDs[start:end]

		if len(chunk) == 1 {
			if _, err := o.api.SendPhoto(ctx, destination, chunk[0], caption); err != nil {
				return err
			}
		} else {
			media := make([]telegram.InputMediaPhoto, len(chunk))
			for i, id := range chunk {
				media[i] = telegram.Photo(id, "")
			}
			media[0].Caption = caption
			if _, err := o.api.SendMediaGroup(ctx, destination, media); err != nil {
				return fmt.Errorf("album %d-%d: %w", start+1, end, err)
			}
		}
		caption = ""
	}
	return nil
}

// notifyDispatchFailure tells the user their report did not go through.
func (o *outbox) notifyDispatchFailure(ctx context.Context, err *conversation.DispatchError) {
	if _, sendErr := o.api.SendMessage(ctx, err.Key.ChatID, o.messages.DispatchFailed, nil); sendErr != nil {
		o.log.Warn("dispatch failure notice not sent", zap.String("conversation_id", err.ConversationID), zap.Error(sendErr))
	}
}
