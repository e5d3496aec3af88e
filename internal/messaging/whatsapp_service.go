package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/whatsapp"
)

// WhatsAppService delivers questionnaire messages over a whatsmeow session
// and surfaces inbound replies and receipts on channels.
type WhatsAppService struct {
	client   whatsapp.Sender
	receipts chan Receipt
	inbounds chan Inbound

	mu      sync.Mutex
	stopped bool
}

// NewWhatsAppService wraps an existing WhatsApp sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{
		client:   client,
		receipts: make(chan Receipt, DefaultChannelBufferSize),
		inbounds: make(chan Inbound, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient strips the number down to digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a text message to the given phone number.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrServiceStopped
	}

	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}
	slog.Debug("whatsapp message sent", "to", canonical, "len", len(body))
	return nil
}

// Start registers the event handler when the underlying client exposes the
// raw whatsmeow instance. A mock sender simply has no event source.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if c, ok := s.client.(*whatsapp.Client); ok {
		c.WhatsmeowClient().AddEventHandler(s.handleEvent)
	}
	slog.Info("whatsapp service started")
	return nil
}

// handleEvent converts whatsmeow events into channel messages. Sends are
// non-blocking: if a consumer falls behind, events are dropped with a log.
func (s *WhatsAppService) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		body := v.Message.GetConversation()
		if body == "" && v.Message.GetExtendedTextMessage() != nil {
			body = v.Message.GetExtendedTextMessage().GetText()
		}
		if body == "" {
			return
		}
		msg := Inbound{
			From: v.Info.Sender.User,
			Body: body,
			Time: v.Info.Timestamp.Unix(),
		}
		select {
		case s.inbounds <- msg:
		default:
			slog.Warn("inbound channel full, dropping message", "from", msg.From)
		}
	case *events.Receipt:
		status := StatusDelivered
		if v.Type == events.ReceiptTypeRead {
			status = StatusRead
		}
		rcpt := Receipt{
			To:     v.MessageSource.Sender.User,
			Status: status,
			Time:   v.Timestamp.Unix(),
		}
		select {
		case s.receipts <- rcpt:
		default:
			slog.Warn("receipt channel full, dropping receipt", "to", rcpt.To)
		}
	}
}

// Stop disconnects the client and closes the event channels.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.client.Disconnect()
	close(s.receipts)
	close(s.inbounds)
	slog.Info("whatsapp service stopped")
	return nil
}

// Receipts returns the delivery receipt channel.
func (s *WhatsAppService) Receipts() <-chan Receipt {
	return s.receipts
}

// Inbounds returns the incoming message channel.
func (s *WhatsAppService) Inbounds() <-chan Inbound {
	return s.inbounds
}
