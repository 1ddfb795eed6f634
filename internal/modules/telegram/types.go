package telegram

// Inbound webhook payload. The shapes follow the Bot API update object;
// only the fields the sync engine reads are declared. DeletedChannelPost
// is a private extension delivered by the channel admin bot when a post
// is removed (the Bot API itself has no deletion event).
type Update struct {
	UpdateID           int64          `json:"update_id"`
	Message            *Message       `json:"message,omitempty"`
	ChannelPost        *Message       `json:"channel_post,omitempty"`
	EditedChannelPost  *Message       `json:"edited_channel_post,omitempty"`
	DeletedChannelPost *Message       `json:"deleted_channel_post,omitempty"`
	CallbackQuery      *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Date      int64       `json:"date,omitempty"`
}

// Content returns the post text, falling back to the photo caption.
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// PhotoSize entries arrive size-ascending; the last one is the largest.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data,omitempty"`
	Message *Message `json:"message,omitempty"`
}
