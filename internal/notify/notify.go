// Package notify defines how the relay talks to the operator channel.
package notify

import (
	"context"

	"github.com/oshokin/cry-relay/internal/logger"
)

// Message is one operator notification.
type Message struct {
	// Text is the human-readable body.
	Text string
	// Actions are quick-reply button labels shown under the message.
	Actions []string
}

// Notifier delivers messages to the single operator channel.
// Implementations must not panic and must honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Nop stands in for a notifier whose credentials are missing.
// It logs the message locally and reports success.
type Nop struct{}

// Send logs msg at warn level so it stays visible with the default log level.
func (Nop) Send(ctx context.Context, msg Message) error {
	logger.WarnKV(ctx, "Notifier disabled, message not sent", "text", msg.Text)

	return nil
}
