package telegram

import "encoding/json"

// Update mirrors the Telegram update payload that wraps incoming messages.
type Update struct {
	UpdateID      int                `json:"update_id"`
	Message       *Message           `json:"message"`
	EditedMessage *Message           `json:"edited_message"`
	MyChatMember  *ChatMemberUpdated `json:"my_chat_member"`
}

// Message captures the relevant parts of a Telegram chat message.
type Message struct {
	MessageID    int         `json:"message_id"`
	From         *User       `json:"from"`
	Chat         Chat        `json:"chat"`
	Date         int64       `json:"date"`
	Text         string      `json:"text"`
	Caption      string      `json:"caption"`
	Photo        []PhotoSize `json:"photo"`
	MediaGroupID string      `json:"media_group_id"`
}

// Body returns the message text, falling back to the photo caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// LargestPhoto returns the file id of the biggest photo variant, or "".
func (m *Message) LargestPhoto() string {
	if len(m.Photo) == 0 {
		return ""
	}
	return m.Photo[len(m.Photo)-1].FileID
}

// PhotoSize captures the photo variants Telegram sends with a message.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int    `json:"file_size"`
}

// User represents the Telegram account that sent a message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat contains the chat metadata Telegram includes per message.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

// ChatMember holds the bot's membership status in a chat.
type ChatMember struct {
	Status string `json:"status"`
	User   *User  `json:"user"`
}

// ChatMemberUpdated is sent when the bot's own membership changes.
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          *User      `json:"from"`
	Date          int64      `json:"date"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// Joined reports whether the update moved the bot from outside the chat to inside it.
func (u *ChatMemberUpdated) Joined() bool {
	return !isMember(u.OldChatMember.Status) && isMember(u.NewChatMember.Status)
}

func isMember(status string) bool {
	switch status {
	case "creator", "administrator", "member", "restricted":
		return true
	default:
		return false
	}
}

// KeyboardButton is one button of a reply keyboard.
type KeyboardButton struct {
	Text string `json:"text"`
}

// ReplyKeyboardMarkup shows a custom keyboard with reply options.
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
}

// ReplyKeyboardRemove hides the current custom keyboard.
type ReplyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// Keyboard lays out one button per row, as the bot presents answer options.
func Keyboard(labels ...string) *ReplyKeyboardMarkup {
	rows := make([][]KeyboardButton, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []KeyboardButton{{Text: l}})
	}
	return &ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
}

// RemoveKeyboard returns markup that hides any custom keyboard.
func RemoveKeyboard() *ReplyKeyboardRemove {
	return &ReplyKeyboardRemove{RemoveKeyboard: true}
}

// InputMediaPhoto is one photo of a sendMediaGroup album.
type InputMediaPhoto struct {
	Type    string `json:"type"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// Photo returns an album entry for an already uploaded file id.
func Photo(fileID, caption string) InputMediaPhoto {
	return InputMediaPhoto{Type: "photo", Media: fileID, Caption: caption}
}

// BotCommand is one entry of the bot's command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// response is the envelope every Bot API method answers with.
type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}
