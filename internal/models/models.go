// Package models defines the core data structures for the dialog engine.
//
// It includes the step/flow graph types shared between the code-defined
// master questionnaire and editor-built flow documents, plus the agent,
// lead and transcript types shared across modules.
package models

import (
	"errors"
	"time"
)

// ActionType determines which input affordance a step exposes after its
// message sequence has been rendered.
type ActionType string

const (
	// ActionButtons shows a row of tappable options, optionally branching.
	ActionButtons ActionType = "buttons"
	// ActionInput shows a free-text or numeric input field.
	ActionInput ActionType = "input"
	// ActionDate shows a date picker.
	ActionDate ActionType = "date"
	// ActionMultiChoice shows a multi-select option list.
	ActionMultiChoice ActionType = "multi_choice"
	// ActionCheckbox shows a checklist.
	ActionCheckbox ActionType = "checkbox"
	// ActionForm shows a contact form with consent text.
	ActionForm ActionType = "form"
	// ActionScrollList shows a scrollable item list.
	ActionScrollList ActionType = "interactive_scroll_list"
	// ActionEnd marks a terminal step; no further input is accepted.
	ActionEnd ActionType = "end"
)

// IsValidActionType checks if the given action type is supported.
func IsValidActionType(at ActionType) bool {
	switch at {
	case ActionButtons, ActionInput, ActionDate, ActionMultiChoice,
		ActionCheckbox, ActionForm, ActionScrollList, ActionEnd:
		return true
	default:
		return false
	}
}

// Validation constants for step graphs and responses.
const (
	// MaxMessageLength defines the maximum allowed length for one step message.
	MaxMessageLength = 4096
	// MaxButtonLabelLength defines the maximum allowed length for button labels.
	MaxButtonLabelLength = 100
	// MaxButtonCount defines the maximum number of button options per step.
	MaxButtonCount = 10
)

// Error variables shared across modules for validation and lookup failures.
var (
	ErrStepNotFound       = errors.New("step not found in flow")
	ErrEmptyStepID        = errors.New("step id cannot be empty")
	ErrInvalidActionType  = errors.New("invalid action type")
	ErrEmptyMessage       = errors.New("step message cannot be empty")
	ErrMissingButtons     = errors.New("button options are required for buttons steps")
	ErrTooManyButtons     = errors.New("too many button options")
	ErrButtonLabelTooLong = errors.New("button label exceeds maximum length")
	ErrMissingStartStep   = errors.New("flow has no start step")
	ErrEmptyAgentID       = errors.New("agent id cannot be empty")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrFlowNotFound       = errors.New("flow not found")
	ErrInactiveAgent      = errors.New("agent subscription is not active")
	ErrNoContactChannel   = errors.New("agent has no contact channel configured")
	ErrConversationDone   = errors.New("conversation already completed")
)

// Data is the per-conversation accumulator: every collected response and
// every calculator-derived figure lives here, keyed by step id or by a
// handler-chosen key. One conversation owns one bag; it is never shared.
type Data map[string]any

// Clone returns a shallow copy of the bag.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ButtonOption is one tappable option on a buttons step. NextStep, when set,
// overrides the step's own next-step resolution for that option.
type ButtonOption struct {
	Label    string `json:"label"`
	NextStep string `json:"nextStep,omitempty"`
}

// InputSpec describes a free-text or numeric input affordance.
type InputSpec struct {
	Type        string `json:"type,omitempty"` // "text" or "number"
	Placeholder string `json:"placeholder,omitempty"`
}

// FormField is one field of a contact form.
type FormField struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Required    bool   `json:"required,omitempty"`
	InputType   string `json:"inputType,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// FormSpec describes a contact form affordance with consent text.
type FormSpec struct {
	Fields      []FormField `json:"fields"`
	ConsentText string      `json:"consentText,omitempty"`
}

// MessageFunc produces step message content from the accumulated data.
// Used by code-defined flows only; editor-built flows carry literal content.
type MessageFunc func(data Data) []string

// NextStepFunc resolves the next step id from the response and accumulated
// data. Used by code-defined flows only.
type NextStepFunc func(resp Response, data Data) string

// HandlerFunc binds a response into the accumulator under handler-chosen
// keys, e.g. splitting a contact form into nested fields.
type HandlerFunc func(resp Response, data Data)

// Step is one node of a flow graph.
//
// Exactly one of Messages / MessageFn supplies the message content; exactly
// one of Next / NextFn supplies the transition (both may be empty on
// terminal steps). The option payload fields are populated per ActionType
// and ignored otherwise.
type Step struct {
	ID        string
	Messages  []string
	MessageFn MessageFunc

	Action  ActionType
	Buttons []ButtonOption
	Input   *InputSpec
	Form    *FormSpec
	Items   []string

	Next   string
	NextFn NextStepFunc

	Handler HandlerFunc

	IsProgressStep bool
	BranchStart    bool
	AutoContinue   bool

	// Delay overrides the per-message composing delay when > 0.
	Delay time.Duration
	// MinLength rejects free-text responses shorter than this when > 0.
	MinLength int
}

// Validate performs structural validation on a step.
func (s *Step) Validate() error {
	if s.ID == "" {
		return ErrEmptyStepID
	}
	if !IsValidActionType(s.Action) {
		return ErrInvalidActionType
	}
	if s.Action == ActionButtons {
		// Auto-continue narrative steps advance without exposing buttons.
		if len(s.Buttons) == 0 && !s.AutoContinue {
			return ErrMissingButtons
		}
		if len(s.Buttons) > MaxButtonCount {
			return ErrTooManyButtons
		}
		for _, b := range s.Buttons {
			if len(b.Label) > MaxButtonLabelLength {
				return ErrButtonLabelTooLong
			}
		}
	}
	return nil
}

// Flow is a step graph with a designated entry point. Key order is
// irrelevant; traversal order is determined by the graph, not declaration.
type Flow struct {
	ID          string
	Name        string
	StartStepID string
	Steps       map[string]Step
}

// Step looks up a step by id.
func (f *Flow) Step(id string) (Step, bool) {
	s, ok := f.Steps[id]
	return s, ok
}

// Validate checks the flow has a resolvable start step and valid steps.
func (f *Flow) Validate() error {
	if f.StartStepID == "" {
		return ErrMissingStartStep
	}
	if _, ok := f.Steps[f.StartStepID]; !ok {
		return ErrMissingStartStep
	}
	for id, s := range f.Steps {
		if s.ID == "" {
			s.ID = id
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Response is one typed user input submitted to a conversation turn.
// Exactly one payload field is populated depending on the affordance.
type Response struct {
	// Text carries input/scroll-list responses and the chosen button label.
	Text string `json:"text,omitempty"`
	// OptionIndex is the zero-based chosen button index, or -1.
	OptionIndex int `json:"optionIndex,omitempty"`
	// NextStep is the explicit per-option branch target, when the chosen
	// option declared one.
	NextStep string `json:"nextStep,omitempty"`
	// Values carries multi-choice and checkbox selections.
	Values []string `json:"values,omitempty"`
	// Date carries date-picker responses.
	Date *time.Time `json:"date,omitempty"`
	// Fields carries contact-form submissions keyed by field key.
	Fields map[string]string `json:"fields,omitempty"`
}

// MessageAuthor identifies who authored a transcript message.
type MessageAuthor string

const (
	// AuthorEngine marks messages rendered by the flow engine.
	AuthorEngine MessageAuthor = "engine"
	// AuthorUser marks messages echoing a user response.
	AuthorUser MessageAuthor = "user"
)

// Message is one rendered unit of the append-only conversation transcript.
// It exists for display only and is never persisted beyond the session.
type Message struct {
	ID      string        `json:"id"`
	Author  MessageAuthor `json:"author"`
	Type    string        `json:"type"` // "text" or "response"
	Content string        `json:"content"`
}

// SubscriptionStatus mirrors the billing provider's view of an agent.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionTrialing SubscriptionStatus = "trialing"
)

// Agent is the referring insurance agent a conversation is tied to.
type Agent struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email,omitempty"`
	Phone        string             `json:"phone,omitempty"`
	ActiveFlowID string             `json:"activeFlowId,omitempty"`
	Subscription SubscriptionStatus `json:"subscription"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// CanReceiveLeads reports whether a conversation may start for this agent.
func (a *Agent) CanReceiveLeads() error {
	if a.Subscription != SubscriptionActive && a.Subscription != SubscriptionTrialing {
		return ErrInactiveAgent
	}
	if a.Email == "" && a.Phone == "" {
		return ErrNoContactChannel
	}
	return nil
}

// Lead status and source constants. Status "Nou" is the CRM's initial
// pipeline column; source "Link Client" marks widget-originated leads.
const (
	LeadStatusNew    = "Nou"
	LeadSourceClient = "Link Client"
)

// Lead is the final persisted contact+answers record tied to an agent.
// Payload holds the full accumulated data bag; array values are joined
// into delimited strings before writing.
type Lead struct {
	ID        string            `json:"id"`
	AgentID   string            `json:"agentId"`
	Source    string            `json:"source"`
	Status    string            `json:"status"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Validate checks the lead carries the minimum persistable shape.
func (l *Lead) Validate() error {
	if l.AgentID == "" {
		return ErrEmptyAgentID
	}
	return nil
}

// ConversationState is the persistable snapshot of a running conversation:
// enough to resume at the current step after a process restart.
type ConversationState struct {
	ConversationID string    `json:"conversationId"`
	AgentID        string    `json:"agentId"`
	FlowID         string    `json:"flowId"`
	CurrentStepID  string    `json:"currentStepId"`
	Awaiting       bool      `json:"awaiting"`
	Completed      bool      `json:"completed"`
	Data           Data      `json:"data"`
	ProgressStep   int       `json:"progressStep"`
	ProgressTotal  int       `json:"progressTotal"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
