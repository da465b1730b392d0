package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"siriusbot/conversation"
	"siriusbot/telegram"
)

type sent struct {
	method  string
	caption string
	photos  []string
}

type recordingSender struct {
	sent     []sent
	albumErr error
	// failAlbum fails only the n-th album call (1-based) when set.
	failAlbum int
	albums    int
}

func (r *recordingSender) SendMessage(_ context.Context, _ int64, text string, _ any) (*telegram.Message, error) {
	r.sent = append(r.sent, sent{method: "sendMessage", caption: text})
	return &telegram.Message{}, nil
}

func (r *recordingSender) SendPhoto(_ context.Context, _ int64, fileID, caption string) (*telegram.Message, error) {
	r.sent = append(r.sent, sent{method: "sendPhoto", caption: caption, photos: []string{fileID}})
	return &telegram.Message{}, nil
}

func (r *recordingSender) SendMediaGroup(_ context.Context, _ int64, media []telegram.InputMediaPhoto) ([]telegram.Message, error) {
	r.albums++
	if r.albumErr != nil && (r.failAlbum == 0 || r.failAlbum == r.albums) {
		return nil, r.albumErr
	}
	s := sent{method: "sendMediaGroup", caption: media[0].Caption}
	for _, m := range media {
		s.photos = append(s.photos, m.Media)
	}
	r.sent = append(r.sent, s)
	return nil, nil
}

func photoIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i+1)
	}
	return ids
}

func TestDispatchReportShapes(t *testing.T) {
	long := strings.Repeat("я", telegram.MaxCaptionLength+1)

	tests := []struct {
		name    string
		text    string
		photos  int
		methods []string
		caption []string
	}{
		{"text only", "report", 0, []string{"sendMessage"}, []string{"report"}},
		{"single photo", "report", 1, []string{"sendPhoto"}, []string{"report"}},
		{"album", "report", 3, []string{"sendMediaGroup"}, []string{"report"}},
		{"album overflow", "report", 11, []string{"sendMediaGroup", "sendPhoto"}, []string{"report", ""}},
		{"two albums", "report", 14, []string{"sendMediaGroup", "sendMediaGroup"}, []string{"report", ""}},
		{"long caption", long, 2, []string{"sendMessage", "sendMediaGroup"}, []string{long, ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &recordingSender{}
			out := newOutbox(api, conversation.DefaultMessages(), zap.NewNop())

			if err := out.DispatchReport(context.Background(), -1001, tc.text, photoIDs(tc.photos)); err != nil {
				t.Fatalf("DispatchReport returned error: %v", err)
			}
			if len(api.sent) != len(tc.methods) {
				t.Fatalf("expected %d calls, got %+v", len(tc.methods), api.sent)
			}
			total := 0
			for i, s := range api.sent {
				if s.method != tc.methods[i] {
					t.Fatalf("call %d: expected %s, got %s", i, tc.methods[i], s.method)
				}
				if s.caption != tc.caption[i] {
					t.Fatalf("call %d: unexpected caption %q", i, s.caption)
				}
				total += len(s.photos)
			}
			if total != tc.photos {
				t.Fatalf("expected %d photos sent, got %d", tc.photos, total)
			}
		})
	}
}

func TestDispatchReportAlbumError(t *testing.T) {
	boom := errors.New("flood wait")
	out := newOutbox(&recordingSender{albumErr: boom}, conversation.DefaultMessages(), zap.NewNop())

	err := out.DispatchReport(context.Background(), -1001, "report", photoIDs(2))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped album error, got %v", err)
	}
}

func TestDispatchReportStopsAtFailedChunk(t *testing.T) {
	boom := errors.New("too many requests")
	api := &recordingSender{albumErr: boom, failAlbum: 2}
	out := newOutbox(api, conversation.DefaultMessages(), zap.NewNop())

	err := out.DispatchReport(context.Background(), -1001, "report", photoIDs(14))
	if !errors.Is(err, boom) {
		t.Fatalf("expected second album error, got %v", err)
	}
	if len(api.sent) != 1 || len(api.sent[0].photos) != telegram.MaxAlbumSize || api.sent[0].caption != "report" {
		t.Fatalf("expected only the first album to be delivered, got %+v", api.sent)
	}
}

func TestAcknowledgmentOffersStartButton(t *testing.T) {
	api := &recordingKeyboard{}
	out := newOutbox(api, conversation.Messages{StartButton: "заново"}, zap.NewNop())

	key := conversation.Key{ChatID: 42, UserID: 7}
	if err := out.PresentAcknowledgment(context.Background(), key, "ok"); err != nil {
		t.Fatalf("PresentAcknowledgment returned error: %v", err)
	}
	kb, ok := api.markup.(*telegram.ReplyKeyboardMarkup)
	if !ok || len(kb.Keyboard) != 1 || kb.Keyboard[0][0].Text != "заново" {
		t.Fatalf("unexpected markup %#v", api.markup)
	}

	if err := out.PresentFreeform(context.Background(), key, "describe"); err != nil {
		t.Fatalf("PresentFreeform returned error: %v", err)
	}
	if _, ok := api.markup.(*telegram.ReplyKeyboardRemove); !ok {
		t.Fatalf("expected keyboard removal, got %#v", api.markup)
	}
}

type recordingKeyboard struct {
	recordingSender
	markup any
}

func (r *recordingKeyboard) SendMessage(_ context.Context, _ int64, _ string, markup any) (*telegram.Message, error) {
	r.markup = markup
	return &telegram.Message{}, nil
}
