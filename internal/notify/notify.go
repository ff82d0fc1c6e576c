package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTimeout        = errors.New("delivery timed out")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Message is one outbound delivery with a file attachment.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentPath string
}

// Receipt reports a completed delivery.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Notifier delivers a message. Delivery is at-most-once and non-idempotent
// from the caller's point of view: an error does not guarantee the message
// was not delivered, so retrying callers must tolerate duplicates.
type Notifier interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
