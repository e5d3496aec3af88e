// Package whatsapp wraps the whatsmeow client behind a small sender
// interface so channel code and tests do not depend on a live session.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/store"
)

// DefaultSessionDSN is the session store used when no override is given.
var DefaultSessionDSN = "file:" + filepath.Join(os.TempDir(), "dialogpipe-whatsapp.db") + "?_foreign_keys=on"

// Opts holds configuration for the WhatsApp client.
type Opts struct {
	SessionDSN  string
	QRPath      string
	NumericCode bool
}

// Option configures Opts.
type Option func(*Opts)

// WithSessionDSN sets the whatsmeow session store DSN. Both SQLite file DSNs
// and Postgres URLs are accepted.
func WithSessionDSN(dsn string) Option {
	return func(o *Opts) { o.SessionDSN = dsn }
}

// WithQRPath writes the login QR code to a file instead of the terminal.
func WithQRPath(path string) Option {
	return func(o *Opts) { o.QRPath = path }
}

// WithNumericCode prints the raw pairing code instead of rendering a QR.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// Sender is the minimal surface the channel service needs.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
	Disconnect()
}

// Client is a WhatsApp sender backed by a whatsmeow session.
type Client struct {
	client *whatsmeow.Client
}

// NewClient creates and connects a WhatsApp client, performing the QR or
// pairing-code login flow when no stored session exists.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := Opts{SessionDSN: DefaultSessionDSN}
	for _, opt := range opts {
		opt(&cfg)
	}

	driver := "sqlite3"
	if store.DetectDSNType(cfg.SessionDSN) == "postgres" {
		driver = "postgres"
	}

	dbLog := waLog.Stdout("Database", "INFO", true)
	container, err := sqlstore.New(ctx, driver, cfg.SessionDSN, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Stdout("Client", "INFO", true)
	wc := whatsmeow.NewClient(device, clientLog)

	if wc.Store.ID == nil {
		if err := loginWithQR(ctx, wc, cfg); err != nil {
			return nil, err
		}
	} else {
		if err := wc.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
	}

	slog.Info("whatsapp client connected")
	return &Client{client: wc}, nil
}

func loginWithQR(ctx context.Context, wc *whatsmeow.Client, cfg Opts) error {
	qrChan, err := wc.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := wc.Connect(); err != nil {
		return fmt.Errorf("failed to connect for login: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if cfg.NumericCode {
				fmt.Println("Pairing code:", evt.Code)
				continue
			}
			if cfg.QRPath != "" {
				f, err := os.Create(cfg.QRPath)
				if err != nil {
					return fmt.Errorf("failed to create QR file: %w", err)
				}
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, f)
				f.Close()
				slog.Info("login QR written", "path", cfg.QRPath)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
		case "success":
			slog.Info("whatsapp login successful")
			return nil
		case "timeout":
			return fmt.Errorf("login timed out")
		}
	}
	return nil
}

// SendMessage sends a plain text message to the given phone number.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	jid := types.NewJID(to, "s.whatsapp.net")
	_, err := c.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

// Disconnect closes the underlying session.
func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

// WhatsmeowClient exposes the raw client for event-handler registration.
func (c *Client) WhatsmeowClient() *whatsmeow.Client {
	return c.client
}

// MockClient is a Sender that records messages instead of delivering them.
type MockClient struct {
	Sent []MockMessage
}

// MockMessage captures one send call.
type MockMessage struct {
	To   string
	Body string
}

func (m *MockClient) SendMessage(_ context.Context, to string, body string) error {
	m.Sent = append(m.Sent, MockMessage{To: to, Body: body})
	return nil
}

func (m *MockClient) Disconnect() {}
