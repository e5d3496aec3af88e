package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/flow"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// Defaults for the channel runner.
const (
	// DefaultNudgeDelay is how long the runner waits for a reply before
	// sending a single reminder.
	DefaultNudgeDelay = 30 * time.Minute
)

// defaultNudgeText is the reminder sent when a participant goes quiet
// mid-questionnaire.
const defaultNudgeText = "Mai ești aici? Putem continua analiza oricând, de unde am rămas."

// optionPrompt asks the participant to answer with an option number.
const optionPrompt = "Te rog să răspunzi cu numărul opțiunii dorite."

// Runner drives questionnaire conversations over a channel service. Each
// participant phone number maps to one live conversation; inbound messages
// become typed responses for the step that conversation is waiting on.
type Runner struct {
	svc        Service
	flow       *models.Flow
	agentID    string
	convOpts   []flow.Option
	timer      flow.Timer
	nudgeDelay time.Duration
	nudgeText  string

	mu       sync.Mutex
	sessions map[string]*channelSession
}

// channelSession tracks one participant's conversation and how much of its
// transcript has already been delivered to the channel.
type channelSession struct {
	mu        sync.Mutex
	conv      *flow.Conversation
	delivered int
	nudgeID   string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConversationOptions passes options through to each new conversation.
func WithConversationOptions(opts ...flow.Option) RunnerOption {
	return func(r *Runner) { r.convOpts = opts }
}

// WithNudge overrides the reminder delay, and the reminder text when one is
// given.
func WithNudge(delay time.Duration, text string) RunnerOption {
	return func(r *Runner) {
		r.nudgeDelay = delay
		if text != "" {
			r.nudgeText = text
		}
	}
}

// WithTimer overrides the re-engagement timer.
func WithTimer(t flow.Timer) RunnerOption {
	return func(r *Runner) { r.timer = t }
}

// NewRunner builds a runner that serves the given flow on behalf of one agent.
func NewRunner(svc Service, f *models.Flow, agentID string, opts ...RunnerOption) *Runner {
	r := &Runner{
		svc:        svc,
		flow:       f,
		agentID:    agentID,
		timer:      flow.NewSimpleTimer(),
		nudgeDelay: DefaultNudgeDelay,
		nudgeText:  defaultNudgeText,
		sessions:   make(map[string]*channelSession),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes inbound messages and receipts until the context is cancelled
// or the service channels close.
func (r *Runner) Run(ctx context.Context) error {
	inbounds := r.svc.Inbounds()
	receipts := r.svc.Receipts()
	for {
		select {
		case <-ctx.Done():
			r.timer.Stop()
			return ctx.Err()
		case msg, ok := <-inbounds:
			if !ok {
				r.timer.Stop()
				return nil
			}
			r.handleInbound(ctx, msg)
		case rcpt, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("channel receipt", "to", rcpt.To, "status", rcpt.Status)
		}
	}
}

// handleInbound routes one participant message: the first contact starts a
// conversation, later messages answer the step it is waiting on.
func (r *Runner) handleInbound(ctx context.Context, msg Inbound) {
	sess, created := r.session(msg.From)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	r.cancelNudge(sess)

	if created {
		if _, err := sess.conv.Start(ctx); err != nil {
			slog.Error("channel conversation start failed", "from", msg.From, "error", err)
		}
		r.deliver(ctx, sess, msg.From)
		return
	}

	if sess.conv.Completed() {
		slog.Debug("channel message after completion ignored", "from", msg.From)
		return
	}

	step, ok := sess.conv.CurrentStep()
	if !ok {
		slog.Warn("channel session has no current step", "from", msg.From)
		return
	}

	resp, ok := r.translate(step, msg.Body)
	if !ok {
		// Unrecognized option choice: re-ask without touching the engine.
		r.send(ctx, msg.From, optionPrompt+"\n"+renderAffordance(step))
		r.scheduleNudge(ctx, sess, msg.From)
		return
	}

	if _, err := sess.conv.ProcessResponse(ctx, resp); err != nil {
		slog.Error("channel response processing failed", "from", msg.From, "error", err)
	}
	r.deliver(ctx, sess, msg.From)
}

// session returns the participant's session, creating the conversation on
// first contact.
func (r *Runner) session(from string) (*channelSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[from]; ok {
		return sess, false
	}
	sess := &channelSession{
		conv: flow.NewConversation(r.flow, r.agentID, r.convOpts...),
	}
	r.sessions[from] = sess
	slog.Info("channel conversation opened", "from", from, "conversationID", sess.conv.ID())
	return sess, true
}

// deliver sends the transcript entries rendered since the last delivery,
// then the affordance prompt for the step now awaited.
func (r *Runner) deliver(ctx context.Context, sess *channelSession, to string) {
	msgs := sess.conv.Messages()
	for _, m := range msgs[sess.delivered:] {
		if m.Author != models.AuthorEngine {
			continue
		}
		r.send(ctx, to, m.Content)
	}
	sess.delivered = len(msgs)

	if sess.conv.Completed() {
		r.mu.Lock()
		delete(r.sessions, to)
		r.mu.Unlock()
		slog.Info("channel conversation completed", "to", to, "conversationID", sess.conv.ID())
		return
	}

	if step, ok := sess.conv.CurrentStep(); ok && sess.conv.Awaiting() {
		if prompt := renderAffordance(step); prompt != "" {
			r.send(ctx, to, prompt)
		}
		r.scheduleNudge(ctx, sess, to)
	}
}

func (r *Runner) send(ctx context.Context, to string, body string) {
	if err := r.svc.SendMessage(ctx, to, body); err != nil {
		slog.Error("channel send failed", "to", to, "error", err)
	}
}

// scheduleNudge arms a single reminder for the participant's next reply.
// The caller holds the session lock.
func (r *Runner) scheduleNudge(ctx context.Context, sess *channelSession, to string) {
	id, err := r.timer.ScheduleAfter(r.nudgeDelay, func() {
		r.send(ctx, to, r.nudgeText)
	})
	if err != nil {
		slog.Warn("failed to schedule reminder", "to", to, "error", err)
		return
	}
	sess.nudgeID = id
}

// cancelNudge disarms the pending reminder, if any. The caller holds the
// session lock.
func (r *Runner) cancelNudge(sess *channelSession) {
	if sess.nudgeID == "" {
		return
	}
	if err := r.timer.Cancel(sess.nudgeID); err != nil {
		slog.Debug("reminder cancel failed", "timerID", sess.nudgeID, "error", err)
	}
	sess.nudgeID = ""
}

// translate converts a plain text reply into the typed response the awaited
// step expects. Returns false when a button step gets a reply that matches
// no option.
func (r *Runner) translate(step models.Step, body string) (models.Response, bool) {
	text := strings.TrimSpace(body)
	switch step.Action {
	case models.ActionButtons:
		if len(step.Buttons) == 0 {
			return models.Response{Text: text}, true
		}
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(step.Buttons) {
			opt := step.Buttons[n-1]
			return models.Response{Text: opt.Label, OptionIndex: n - 1, NextStep: opt.NextStep}, true
		}
		for i, opt := range step.Buttons {
			if strings.EqualFold(opt.Label, text) {
				return models.Response{Text: opt.Label, OptionIndex: i, NextStep: opt.NextStep}, true
			}
		}
		return models.Response{}, false
	case models.ActionScrollList:
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(step.Items) {
			return models.Response{Text: step.Items[n-1]}, true
		}
		return models.Response{Text: text}, true
	case models.ActionDate:
		for _, layout := range []string{"02/01/2006", "02.01.2006", "2.1.2006"} {
			if d, err := time.Parse(layout, text); err == nil {
				return models.Response{Date: &d}, true
			}
		}
		return models.Response{Text: text}, true
	case models.ActionMultiChoice, models.ActionCheckbox:
		parts := strings.Split(text, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if v := strings.TrimSpace(p); v != "" {
				values = append(values, v)
			}
		}
		return models.Response{Values: values}, true
	case models.ActionForm:
		return models.Response{Fields: parseFormReply(step.Form, text)}, true
	default:
		return models.Response{Text: text}, true
	}
}

// parseFormReply maps a semicolon or newline separated reply onto the form's
// fields in declaration order. Missing required fields trigger the engine's
// own re-prompt.
func parseFormReply(form *models.FormSpec, text string) map[string]string {
	fields := make(map[string]string)
	if form == nil {
		return fields
	}
	sep := ";"
	if strings.Contains(text, "\n") && !strings.Contains(text, ";") {
		sep = "\n"
	}
	parts := strings.Split(text, sep)
	for i, field := range form.Fields {
		if i < len(parts) {
			fields[field.Key] = strings.TrimSpace(parts[i])
		}
	}
	return fields
}

// renderAffordance formats the awaited step's input affordance as plain
// channel text.
func renderAffordance(step models.Step) string {
	switch step.Action {
	case models.ActionButtons:
		if len(step.Buttons) == 0 {
			return ""
		}
		var b strings.Builder
		for i, opt := range step.Buttons {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
		}
		return strings.TrimRight(b.String(), "\n")
	case models.ActionScrollList:
		if len(step.Items) == 0 {
			return ""
		}
		var b strings.Builder
		for i, item := range step.Items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
		return strings.TrimRight(b.String(), "\n")
	case models.ActionDate:
		return "Te rog să trimiți data în formatul zz/ll/aaaa."
	case models.ActionForm:
		if step.Form == nil || len(step.Form.Fields) == 0 {
			return ""
		}
		labels := make([]string, len(step.Form.Fields))
		for i, f := range step.Form.Fields {
			labels[i] = f.Label
		}
		return "Te rog să trimiți datele separate prin punct și virgulă: " + strings.Join(labels, "; ")
	default:
		return ""
	}
}
