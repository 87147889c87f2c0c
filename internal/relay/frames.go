package relay

import (
	"github.com/xdg/telecommand/internal/chat"
	"github.com/xdg/telecommand/internal/gate"
)

// Envelope types.
const (
	TypeUpdate = "update" // relay -> worker
	TypeReply  = "reply"  // worker -> relay
	TypeSent   = "sent"   // relay -> worker, acknowledges a reply
)

// Reply actions.
const (
	ActionSend   = "send"
	ActionEdit   = "edit"
	ActionAnswer = "answer"
)

// Envelope is one WebSocket message. Exactly one payload matches Type.
type Envelope struct {
	Type   string       `json:"type"`
	Update *UpdateFrame `json:"update,omitempty"`
	Reply  *ReplyFrame  `json:"reply,omitempty"`
	Sent   *SentFrame   `json:"sent,omitempty"`
}

// UpdateFrame carries a chat message or button press.
type UpdateFrame struct {
	UpdateID  int64          `json:"update_id"`
	ChatID    int64          `json:"chat_id"`
	MessageID int64          `json:"message_id,omitempty"`
	From      User           `json:"from"`
	Text      string         `json:"text,omitempty"`
	Callback  *CallbackFrame `json:"callback,omitempty"`
}

// User is the sender of an update.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// CallbackFrame is an inline keyboard button press.
type CallbackFrame struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	MessageID int64  `json:"message_id"`
}

// ReplyFrame asks the relay to send, edit or answer on the worker's behalf.
// Ref correlates it with the SentFrame the relay answers with.
type ReplyFrame struct {
	Ref        uint64          `json:"ref"`
	Action     string          `json:"action"`
	ChatID     int64           `json:"chat_id,omitempty"`
	MessageID  int64           `json:"message_id,omitempty"`
	CallbackID string          `json:"callback_id,omitempty"`
	Text       string          `json:"text,omitempty"`
	ParseMode  string          `json:"parse_mode,omitempty"`
	Keyboard   [][]chat.Button `json:"keyboard,omitempty"`
	Alert      bool            `json:"alert,omitempty"`
}

// SentFrame acknowledges a ReplyFrame. MessageID is set for ActionSend.
type SentFrame struct {
	Ref       uint64 `json:"ref"`
	MessageID int64  `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (f *UpdateFrame) toUpdate() chat.Update {
	u := chat.Update{
		ID:        f.UpdateID,
		ChatID:    f.ChatID,
		MessageID: f.MessageID,
		From:      gate.Principal{ID: f.From.ID, Name: f.From.Username},
		Text:      f.Text,
	}
	if f.Callback != nil {
		u.Callback = &chat.Callback{ID: f.Callback.ID, Data: f.Callback.Data, MessageID: f.Callback.MessageID}
	}
	return u
}

func replyFrame(action string, chatID, messageID int64, r chat.Reply) ReplyFrame {
	f := ReplyFrame{
		Action:    action,
		ChatID:    chatID,
		MessageID: messageID,
		Text:      r.Text,
		Keyboard:  r.Keyboard,
	}
	if r.Markdown {
		f.ParseMode = "Markdown"
	}
	return f
}
