// Package mailer defines the interface the built-in email node uses to
// send messages.
package mailer

import (
	"context"
	"log/slog"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Result is the outcome of a send.
type Result struct {
	ID string
}

// Client sends an email message.
type Client interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}

// StubClient logs the message instead of delivering it. It stands in
// for a real transactional-email provider so tests never touch the
// network.
type StubClient struct{}

// New creates a StubClient.
func New() *StubClient {
	return &StubClient{}
}

func (c *StubClient) Send(ctx context.Context, msg Message) (*Result, error) {
	slog.Info("email node: sending message", "to", msg.To, "subject", msg.Subject)
	return &Result{ID: "stub-" + msg.To}, nil
}
