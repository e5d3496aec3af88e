// Package messaging provides the channel delivery abstraction used to run
// the questionnaire over WhatsApp, plus the runner that bridges inbound
// channel messages into conversation turns.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// Constants for channel service configuration.
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and inbound channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// StatusType represents a delivery receipt status.
type StatusType string

const (
	StatusSent      StatusType = "sent"
	StatusDelivered StatusType = "delivered"
	StatusRead      StatusType = "read"
)

// Receipt is a delivery or read receipt for an outbound message.
type Receipt struct {
	To     string     `json:"to"`
	Status StatusType `json:"status"`
	Time   int64      `json:"time"`
}

// Inbound is an incoming message from a channel participant.
type Inbound struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier; each service implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan Receipt

	// Inbounds returns a channel of incoming participant messages.
	Inbounds() <-chan Inbound
}

// canonicalizePhone removes all non-numeric characters and validates the
// result has at least 6 digits.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short")
	}
	return canonical, nil
}
