// Package transporttest provides a recording in-memory Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	"jobalertbot/internal/transport"
)

// Sent records one outgoing text message.
type Sent struct {
	ChatID int64
	Text   string
	Opt    *transport.SendOptions
}

// Edit records one edit attempt.
type Edit struct {
	Ref  transport.MessageRef
	Text string
}

// SentPhoto records one outgoing photo.
type SentPhoto struct {
	ChatID int64
	Photo  transport.PhotoOut
}

// Adapter is a scriptable fake. The zero value accepts everything and
// hands out increasing message ids.
type Adapter struct {
	mu     sync.Mutex
	nextID int

	Sent     []Sent
	Edits    []Edit
	Photos   []SentPhoto
	Answered []string
	SendErr  error
	EditErr  error
	PhotoErr error
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error                              { return nil }

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SendErr != nil {
		return transport.MessageRef{}, a.SendErr
	}
	a.nextID++
	a.Sent = append(a.Sent, Sent{ChatID: to.ChatID, Text: text, Opt: opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: a.nextID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.EditErr != nil {
		return a.EditErr
	}
	a.Edits = append(a.Edits, Edit{Ref: ref, Text: text})
	return nil
}

func (a *Adapter) SendPhoto(ctx context.Context, to transport.ChatTarget, photo transport.PhotoOut) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PhotoErr != nil {
		return transport.MessageRef{}, a.PhotoErr
	}
	a.nextID++
	a.Photos = append(a.Photos, SentPhoto{ChatID: to.ChatID, Photo: photo})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: a.nextID}, nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Answered = append(a.Answered, callbackID)
	return nil
}

// TextsTo returns all message texts sent to the given chat, in order.
func (a *Adapter) TextsTo(chatID int64) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, s := range a.Sent {
		if s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}
