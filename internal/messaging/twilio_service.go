package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/twiliowhatsapp"
)

// TwilioService delivers messages through the Twilio API. Inbound replies
// arrive via webhook rather than a live event stream.
type TwilioService struct {
	client   twiliowhatsapp.Sender
	receipts chan Receipt
	inbounds chan Inbound

	mu      sync.RWMutex
	stopped bool
}

// NewTwilioService wraps a Twilio sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:   client,
		receipts: make(chan Receipt, DefaultChannelBufferSize),
		inbounds: make(chan Inbound, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient strips the number down to digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhone(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("twilio recipient canonicalized", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; Twilio has no live client to poll.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped and closes the channels after a short grace
// period so in-flight emits can finish.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.receipts)
		close(s.inbounds)
	}()
	return nil
}

// SendMessage sends a message via Twilio and emits a sent receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		return err
	}

	s.safeEmitReceipt(Receipt{To: canonical, Status: StatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns the delivery receipt channel.
func (s *TwilioService) Receipts() <-chan Receipt {
	return s.receipts
}

// Inbounds returns the incoming message channel, fed by the webhook handler.
func (s *TwilioService) Inbounds() <-chan Inbound {
	return s.inbounds
}

// WebhookHandler handles inbound Twilio webhook requests, emitting each
// incoming message on the Inbounds channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("failed to parse twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("twilio webhook missing fields", "from", from)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("twilio webhook sender rejected", "from", from, "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	s.safeEmitInbound(Inbound{From: canonical, Body: body, Time: time.Now().Unix()})

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *TwilioService) safeEmitReceipt(receipt Receipt) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("receipt channel blocked, dropping receipt", "to", receipt.To)
	}
}

func (s *TwilioService) safeEmitInbound(msg Inbound) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("dropping inbound message, service stopped", "from", msg.From)
		return
	}
	select {
	case s.inbounds <- msg:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("inbound channel blocked, dropping message", "from", msg.From)
	}
}
