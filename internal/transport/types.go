// Package transport defines the messaging surface the bot core talks to.
// The Telegram implementation lives in transport/telegram; the core only
// sees this interface so tests can substitute a fake.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
	UpdatePhoto    UpdateKind = "photo"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
	Photo    *Photo
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
}

type Callback struct {
	ID        string
	ChatID    int64
	FromID    int64
	MessageID int
	Data      string
}

// Photo is an incoming photo message. FileID is the transport's handle for
// the largest available size, so it can be re-sent without downloading.
type Photo struct {
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	FileID       string
	Caption      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard button. Exactly one of URL or Data should
// be set; the adapter maps it onto the platform-specific markup.
type Button struct {
	Text string
	URL  string
	Data string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       [][]Button
}

// PhotoOut is an outgoing photo: either raw bytes (generated images) or a
// transport file id (re-sending a received photo).
type PhotoOut struct {
	FileID  string
	Data    []byte
	Name    string
	Caption string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	SendPhoto(ctx context.Context, to ChatTarget, photo PhotoOut) (MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
