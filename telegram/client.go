// Package telegram is a small client for the Telegram Bot API methods the bot uses.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	requestPathFmt = "%s/bot%s/%s"

	// MaxAlbumSize is the largest number of photos sendMediaGroup accepts.
	MaxAlbumSize = 10
	// MaxCaptionLength is the longest caption Telegram accepts on media.
	MaxCaptionLength = 1024
)

// Client wraps the Telegram Bot API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client instance.
type Option func(*Client)

// WithToken overrides the bot token used by the client.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient assigns a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL changes the base URL used for API calls. Primarily intended for testing.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// NewClient constructs a client. Without WithToken the token is read from
// TELEGRAM_TOKEN, loading .env first.
func NewClient(opts ...Option) (*Client, error) {
	client := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.token == "" {
		_ = godotenv.Load()
		client.token = os.Getenv("TELEGRAM_TOKEN")
	}

	if client.token == "" {
		return nil, errors.New("telegram: bot token not provided; set TELEGRAM_TOKEN environment variable or .env value")
	}

	return client, nil
}

// APIError is a failure reported by the Bot API itself.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset, timeout int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "my_chat_member"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts text to chatID. markup may be nil, a keyboard or a keyboard removal.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup any) (*Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto re-sends an already uploaded photo with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (*Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"photo":   fileID,
	}
	if caption != "" {
		payload["caption"] = caption
	}
	var msg Message
	if err := c.call(ctx, "sendPhoto", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendMediaGroup sends between 2 and MaxAlbumSize photos as one album.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, media []InputMediaPhoto) ([]Message, error) {
	if len(media) < 2 || len(media) > MaxAlbumSize {
		return nil, fmt.Errorf("telegram: media group must hold 2-%d items, got %d", MaxAlbumSize, len(media))
	}
	payload := map[string]any{
		"chat_id": chatID,
		"media":   media,
	}
	var msgs []Message
	if err := c.call(ctx, "sendMediaGroup", payload, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SetMyCommands replaces the bot's command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

func (c *Client) endpoint(method string) string {
	base := strings.TrimSuffix(c.baseURL, "/")
	return fmt.Sprintf(requestPathFmt, base, c.token, method)
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("telegram: %s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram: %s unexpected status %d: %s", method, resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("telegram: decode %s response: %w", method, err)
	}

	if !apiResp.OK {
		return &APIError{Method: method, Code: apiResp.ErrorCode, Description: apiResp.Description}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(apiResp.Result, result); err != nil {
		return fmt.Errorf("telegram: decode %s result: %w", method, err)
	}
	return nil
}
