// Package twiliowhatsapp sends WhatsApp messages through the Twilio REST API,
// as a fallback channel when no direct WhatsApp session is available.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender is the outbound surface used by the channel service.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration for the Twilio client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option configures Opts.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number, in
// "whatsapp:+40712345678" format.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps the Twilio REST API for WhatsApp delivery.
type Client struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewClient builds a Twilio client. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Client{client: client, fromWhats: cfg.FromWhats}, nil
}

// SendMessage sends a WhatsApp message through the Twilio API.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("twilio send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("twilio message sent", "to", to)
	return nil
}

// MockClient records sends instead of delivering them.
type MockClient struct {
	SentMessages []SentMessage
}

// SentMessage captures one send call.
type SentMessage struct {
	To   string
	Body string
}

func (m *MockClient) SendMessage(_ context.Context, to string, body string) error {
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}
