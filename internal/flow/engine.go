// Package flow: the turn-taking conversation state machine.
//
// One Conversation instance owns one accumulated-data bag and one transcript
// for the lifetime of a single questionnaire session. Rendering is
// sequential: a render chain runs to its next await point before control
// returns, and a response is only accepted while the input affordance is
// actually exposed.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/calc"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// Timing defaults for the simulated-typing presentation.
const (
	// DefaultMessageDelay is the per-message composing suspension.
	DefaultMessageDelay = 900 * time.Millisecond
	// DefaultSequencePause separates consecutive messages of one step and
	// precedes an auto-continue transition.
	DefaultSequencePause = 400 * time.Millisecond
)

// ContinueLabel is the fixed navigation affirmation. Button responses
// carrying exactly this label are acknowledgements, not answers, and are
// not stored in the accumulator.
const ContinueLabel = "Continuă"

// FormConfirmation is the redacted transcript entry for a submitted
// contact form; raw PII never appears in the display log.
const FormConfirmation = "Datele de contact au fost trimise."

// minLengthReprompt is the corrective message for too-short free text.
const minLengthReprompt = "Te rog să îmi dai un răspuns puțin mai detaliat."

// requiredFieldsReprompt is the corrective message for incomplete forms.
const requiredFieldsReprompt = "Te rog să completezi toate câmpurile obligatorii."

// SleepFunc suspends for the given duration, honoring context
// cancellation. Tests inject a no-op.
type SleepFunc func(ctx context.Context, d time.Duration)

func defaultSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Conversation drives one questionnaire session through its flow graph.
type Conversation struct {
	id      string
	agentID string
	flow    *models.Flow

	data      models.Data
	messages  []models.Message
	msgSeq    int
	current   string
	awaiting  bool
	completed bool
	halted    bool

	progressStep  int
	progressTotal int

	messageDelay  time.Duration
	sequencePause time.Duration
	sleep         SleepFunc

	sink    LeadSink
	state   StateManager
	onEvent func(models.Message)
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLeadSink sets the lead persistence collaborator.
func WithLeadSink(sink LeadSink) Option {
	return func(c *Conversation) { c.sink = sink }
}

// WithStateManager enables conversation snapshot persistence.
func WithStateManager(sm StateManager) Option {
	return func(c *Conversation) { c.state = sm }
}

// WithDelays overrides the simulated-typing timings.
func WithDelays(messageDelay, sequencePause time.Duration) Option {
	return func(c *Conversation) {
		c.messageDelay = messageDelay
		c.sequencePause = sequencePause
	}
}

// WithSleep injects the suspension function. Tests pass a no-op so render
// chains run instantly.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Conversation) { c.sleep = sleep }
}

// WithEventSink registers a per-message callback, used by channel delivery
// to forward each transcript message as it is appended.
func WithEventSink(fn func(models.Message)) Option {
	return func(c *Conversation) { c.onEvent = fn }
}

// WithID fixes the conversation id instead of generating one.
func WithID(id string) Option {
	return func(c *Conversation) { c.id = id }
}

// NewConversation creates a conversation for one agent over one flow.
func NewConversation(f *models.Flow, agentID string, opts ...Option) *Conversation {
	c := &Conversation{
		agentID:       agentID,
		flow:          f,
		data:          make(models.Data),
		messageDelay:  DefaultMessageDelay,
		sequencePause: DefaultSequencePause,
		sleep:         defaultSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	slog.Debug("Conversation created", "conversationID", c.id, "agentID", agentID, "flowID", f.ID)
	return c
}

// Resume rebuilds a conversation from a persisted snapshot. The transcript
// is session-scoped and not restored; the data bag, position and progress
// counters are.
func Resume(f *models.Flow, state models.ConversationState, opts ...Option) *Conversation {
	c := NewConversation(f, state.AgentID, append(opts, WithID(state.ConversationID))...)
	c.data = state.Data
	if c.data == nil {
		c.data = make(models.Data)
	}
	c.current = state.CurrentStepID
	c.awaiting = state.Awaiting
	c.completed = state.Completed
	c.progressStep = state.ProgressStep
	c.progressTotal = state.ProgressTotal
	slog.Info("Conversation resumed from snapshot", "conversationID", c.id, "step", c.current, "awaiting", c.awaiting)
	return c
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// AgentID returns the owning agent id.
func (c *Conversation) AgentID() string { return c.agentID }

// Completed reports whether the conversation reached a terminal step.
func (c *Conversation) Completed() bool { return c.completed }

// Awaiting reports whether an input affordance is currently exposed.
func (c *Conversation) Awaiting() bool { return c.awaiting }

// Data returns the accumulated response bag. The bag is owned by the
// conversation; callers must treat it as read-only.
func (c *Conversation) Data() models.Data { return c.data }

// Messages returns the full transcript.
func (c *Conversation) Messages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Progress returns the display percentage, clamped to [0, 100]. A zero
// denominator reads as 0%.
func (c *Conversation) Progress() float64 {
	if c.progressTotal == 0 {
		return 0
	}
	pct := float64(c.progressStep) / float64(c.progressTotal) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// CurrentStep returns the step whose affordance is exposed, if any.
func (c *Conversation) CurrentStep() (models.Step, bool) {
	if c.current == "" {
		return models.Step{}, false
	}
	return c.flow.Step(c.current)
}

// Start renders the flow's entry step and runs the chain to its first
// await point. It returns the transcript messages appended during the call.
func (c *Conversation) Start(ctx context.Context) ([]models.Message, error) {
	c.progressTotal = CountProgressSteps(c.flow, c.flow.StartStepID)
	slog.Info("Conversation starting", "conversationID", c.id, "startStep", c.flow.StartStepID, "estimatedProgressTotal", c.progressTotal)
	from := len(c.messages)
	err := c.renderChain(ctx, c.flow.StartStepID)
	c.persist(ctx)
	return c.messages[from:], err
}

// ProcessResponse accepts one typed user response for the currently exposed
// affordance and runs the resulting render chain to its next await point.
// Calls made while no affordance is exposed are no-ops: this is the guard
// against duplicate submissions racing a suspended render.
func (c *Conversation) ProcessResponse(ctx context.Context, resp models.Response) ([]models.Message, error) {
	if !c.awaiting || c.completed || c.halted {
		slog.Debug("Conversation.ProcessResponse ignored: not awaiting input", "conversationID", c.id, "awaiting", c.awaiting, "completed", c.completed)
		return nil, nil
	}
	step, ok := c.flow.Step(c.current)
	if !ok {
		c.halt()
		return nil, fmt.Errorf("%w: %s", models.ErrStepNotFound, c.current)
	}
	c.awaiting = false
	from := len(c.messages)

	c.appendUserMessage(summarizeResponse(step, resp))

	// The one built-in validation/retry loop: re-expose the same affordance
	// without advancing state.
	if reprompt, ok := c.validateResponse(step, resp); !ok {
		c.appendEngineMessage(reprompt)
		c.awaiting = true
		c.persist(ctx)
		return c.messages[from:], nil
	}

	c.bindResponse(step, resp)
	calc.Derive(c.data)

	nextID := resolveNext(step, resp, c.data)

	if step.BranchStart {
		branchCount := CountProgressSteps(c.flow, nextID)
		c.progressTotal = c.progressStep + branchCount
		slog.Debug("Conversation branch resolved, recalibrating progress", "conversationID", c.id, "branchRoot", nextID, "counted", c.progressStep, "branchSteps", branchCount)
	}

	if step.Action == models.ActionForm {
		c.submitLead()
	}

	var err error
	if nextID == "" {
		// Silent completion: equivalent to reaching an end step without a
		// final message.
		c.completed = true
		c.current = ""
		slog.Info("Conversation completed silently", "conversationID", c.id, "lastStep", step.ID)
	} else {
		err = c.renderChain(ctx, nextID)
	}
	c.persist(ctx)
	return c.messages[from:], err
}

// renderChain runs renderStep transitions until the conversation awaits
// input, completes, or halts on a configuration error.
func (c *Conversation) renderChain(ctx context.Context, stepID string) error {
	for {
		step, ok := c.flow.Step(stepID)
		if !ok {
			// Configuration defect: no recovery can be derived from a broken
			// graph, so the conversation halts for good.
			slog.Error("Conversation halted: step not found", "conversationID", c.id, "step", stepID, "flowID", c.flow.ID)
			c.halt()
			return fmt.Errorf("%w: %s", models.ErrStepNotFound, stepID)
		}

		if step.IsProgressStep {
			c.progressStep++
		}

		c.renderMessages(ctx, step)

		if step.Action == models.ActionEnd {
			c.completed = true
			c.awaiting = false
			c.current = step.ID
			slog.Info("Conversation completed", "conversationID", c.id, "endStep", step.ID, "progress", c.Progress())
			return nil
		}

		if step.AutoContinue {
			c.sleep(ctx, c.sequencePause)
			next := resolveNext(step, models.Response{OptionIndex: -1}, c.data)
			if next == "" {
				c.completed = true
				c.current = ""
				slog.Info("Conversation completed silently", "conversationID", c.id, "lastStep", step.ID)
				return nil
			}
			stepID = next
			continue
		}

		c.current = step.ID
		c.awaiting = true
		slog.Debug("Conversation awaiting response", "conversationID", c.id, "step", step.ID, "action", step.Action)
		return nil
	}
}

// renderMessages resolves, substitutes and appends the step's message
// sequence, preserving the sequential-typing presentation: composing delay
// before each message, a short pause between messages of one step.
func (c *Conversation) renderMessages(ctx context.Context, step models.Step) {
	msgs := step.Messages
	if step.MessageFn != nil {
		msgs = step.MessageFn(c.data)
	}
	delay := c.messageDelay
	if step.Delay > 0 {
		delay = step.Delay
	}
	for i, raw := range msgs {
		if i > 0 {
			c.sleep(ctx, c.sequencePause)
		}
		c.sleep(ctx, delay)
		c.appendEngineMessage(Format(raw, c.data))
	}
}

// validateResponse applies the step's declared input constraints. It
// returns the corrective message and false when the response is rejected.
func (c *Conversation) validateResponse(step models.Step, resp models.Response) (string, bool) {
	if step.MinLength > 0 && len(strings.TrimSpace(resp.Text)) < step.MinLength {
		slog.Debug("Conversation response rejected: below minimum length", "conversationID", c.id, "step", step.ID, "minLength", step.MinLength)
		return minLengthReprompt, false
	}
	if step.Action == models.ActionForm && step.Form != nil {
		for _, field := range step.Form.Fields {
			if field.Required && strings.TrimSpace(resp.Fields[field.Key]) == "" {
				slog.Debug("Conversation form rejected: missing required field", "conversationID", c.id, "step", step.ID, "field", field.Key)
				return requiredFieldsReprompt, false
			}
		}
	}
	return "", true
}

// bindResponse writes the response into the accumulator: through the
// step's handler when one is declared, otherwise under the step's own id.
// Pure navigation acknowledgements are not stored at all.
func (c *Conversation) bindResponse(step models.Step, resp models.Response) {
	if step.Handler != nil {
		step.Handler(resp, c.data)
		return
	}
	if isNavigationAck(step, resp) {
		return
	}
	c.data[step.ID] = storableValue(resp)
}

// isNavigationAck recognizes button taps that only advance the flow.
func isNavigationAck(step models.Step, resp models.Response) bool {
	return step.Action == models.ActionButtons && resp.Text == ContinueLabel
}

func storableValue(resp models.Response) any {
	switch {
	case resp.Fields != nil:
		return resp.Fields
	case resp.Values != nil:
		return resp.Values
	case resp.Date != nil:
		return *resp.Date
	default:
		return resp.Text
	}
}

// resolveNext picks the transition target. An explicit per-option branch
// target wins over the step's own resolution; a function-valued next step
// wins over the literal.
func resolveNext(step models.Step, resp models.Response, data models.Data) string {
	if resp.NextStep != "" {
		return resp.NextStep
	}
	if step.NextFn != nil {
		return step.NextFn(resp, data)
	}
	return step.Next
}

// summarizeResponse renders the user-authored transcript entry. Contact
// forms render a fixed confirmation rather than a raw PII dump; arrays
// join with a locale separator; dates format dd/MM/yyyy.
func summarizeResponse(step models.Step, resp models.Response) string {
	switch {
	case resp.Fields != nil:
		return FormConfirmation
	case resp.Values != nil:
		return strings.Join(resp.Values, ", ")
	case resp.Date != nil:
		return resp.Date.Format("02/01/2006")
	default:
		return resp.Text
	}
}

// submitLead flattens the accumulator and hands it to the lead sink on a
// separate goroutine. Failure is reported to the operator log only; the
// user-visible flow proceeds to its thank-you step regardless.
func (c *Conversation) submitLead() {
	if c.sink == nil {
		slog.Warn("Conversation has no lead sink configured, skipping lead write", "conversationID", c.id)
		return
	}
	lead := models.Lead{
		AgentID: c.agentID,
		Source:  models.LeadSourceClient,
		Status:  models.LeadStatusNew,
		Payload: flattenData(c.data),
	}
	sink := c.sink
	convID := c.id
	go func() {
		if err := sink.AddLead(lead); err != nil {
			slog.Error("Lead sink write failed", "error", err, "conversationID", convID, "agentID", lead.AgentID)
			return
		}
		slog.Info("Lead persisted", "conversationID", convID, "agentID", lead.AgentID)
	}()
}

// flattenData converts the accumulator to the flat string record the lead
// contract requires; array values join into delimited strings.
func flattenData(data models.Data) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case []string:
			out[k] = strings.Join(val, ", ")
		case map[string]string:
			for fk, fv := range val {
				out[k+"_"+fk] = fv
			}
		case time.Time:
			out[k] = val.Format("02/01/2006")
		default:
			out[k] = formatValue(v)
		}
	}
	return out
}

func (c *Conversation) halt() {
	c.halted = true
	c.awaiting = false
	c.current = ""
}

func (c *Conversation) appendEngineMessage(content string) {
	c.appendMessage(models.Message{Author: models.AuthorEngine, Type: "text", Content: content})
}

func (c *Conversation) appendUserMessage(content string) {
	c.appendMessage(models.Message{Author: models.AuthorUser, Type: "response", Content: content})
}

func (c *Conversation) appendMessage(m models.Message) {
	c.msgSeq++
	m.ID = fmt.Sprintf("%s-%d", c.id, c.msgSeq)
	c.messages = append(c.messages, m)
	if c.onEvent != nil {
		c.onEvent(m)
	}
}

// persist saves a snapshot when a state manager is configured. Snapshot
// failures are operator-visible only; they never interrupt the session.
func (c *Conversation) persist(ctx context.Context) {
	if c.state == nil {
		return
	}
	if c.completed || c.halted {
		if err := c.state.DeleteConversationState(ctx, c.id); err != nil {
			slog.Warn("Conversation snapshot delete failed", "error", err, "conversationID", c.id)
		}
		return
	}
	snapshot := models.ConversationState{
		ConversationID: c.id,
		AgentID:        c.agentID,
		FlowID:         c.flow.ID,
		CurrentStepID:  c.current,
		Awaiting:       c.awaiting,
		Completed:      c.completed,
		Data:           c.data.Clone(),
		ProgressStep:   c.progressStep,
		ProgressTotal:  c.progressTotal,
	}
	if err := c.state.SaveConversationState(ctx, snapshot); err != nil {
		slog.Warn("Conversation snapshot save failed", "error", err, "conversationID", c.id)
	}
}
