// AngelaMos | 2026
// notifier.go

// Package notify delivers best-effort messages about account and payroll
// events. Delivery failures are reported to the caller as errors so they can
// be logged and counted; they never undo the event being announced.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

var (
	ErrQueueFull     = errors.New("notification queue full")
	ErrClosed        = errors.New("notifier closed")
	ErrInvalidHeader = errors.New("invalid message header")
)

type Message struct {
	To      string
	Subject string
	Text    string
	// HTML is optional; when set the message is sent as
	// multipart/alternative.
	HTML string
	// Key orders delivery: messages sharing a key are delivered in the
	// order they were sent. Defaults to To.
	Key string
}

func (m Message) shardKey() string {
	if m.Key != "" {
		return m.Key
	}
	return m.To
}

func (m Message) validate() error {
	if m.To == "" || strings.ContainsAny(m.To, "\r\n") ||
		strings.ContainsAny(m.Subject, "\r\n") {
		return ErrInvalidHeader
	}
	return nil
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier records messages in the log instead of delivering them. Used
// when SMTP is disabled. Bodies are omitted since they may carry secrets.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notification suppressed",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
