// Package models: editor wire contract for data-defined flows.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepRecord is the pure-data shape of one step as produced by the visual
// flow editor. Unlike code-defined steps it cannot carry callables:
// message content is literal, nextStep is a literal id and response binding
// degrades to an optional saveKey.
type StepRecord struct {
	// Message is either a single string or an ordered array of strings.
	Message        json.RawMessage `json:"message,omitempty"`
	ActionType     ActionType      `json:"actionType"`
	Options        *OptionsRecord  `json:"options,omitempty"`
	NextStep       string          `json:"nextStep,omitempty"`
	SaveKey        string          `json:"saveKey,omitempty"`
	IsProgressStep bool            `json:"isProgressStep,omitempty"`
	BranchStart    bool            `json:"branchStart,omitempty"`
	AutoContinue   bool            `json:"autoContinue,omitempty"`
	DelayMs        int             `json:"delayMs,omitempty"`
	MinLength      int             `json:"minLength,omitempty"`
}

// OptionsRecord is the action-type-dependent options payload of a StepRecord.
type OptionsRecord struct {
	Buttons     []ButtonOption `json:"buttons,omitempty"`
	Type        string         `json:"type,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Fields      []FormField    `json:"fields,omitempty"`
	ConsentText string         `json:"consentText,omitempty"`
	Items       []string       `json:"items,omitempty"`
}

// FlowDocument is the stored shape of an editor-built flow, keyed by
// template id in the document store.
type FlowDocument struct {
	ID          string                `json:"id"`
	Name        string                `json:"name,omitempty"`
	StartStepID string                `json:"startStepId"`
	Flow        map[string]StepRecord `json:"flow"`
}

// messageStrings normalizes the raw message field to an ordered sequence:
// a single string becomes a one-element sequence, absent content an empty one.
func (r *StepRecord) messageStrings() ([]string, error) {
	if len(r.Message) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(r.Message, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(r.Message, &many); err != nil {
		return nil, fmt.Errorf("message must be a string or array of strings: %w", err)
	}
	return many, nil
}

// ToFlow decodes a FlowDocument into a runnable Flow. Handler semantics
// degrade to the declarative SaveKey binding: when set, the response is
// stored under that key instead of the step's own id.
func (d *FlowDocument) ToFlow() (*Flow, error) {
	if d.StartStepID == "" {
		return nil, ErrMissingStartStep
	}
	f := &Flow{
		ID:          d.ID,
		Name:        d.Name,
		StartStepID: d.StartStepID,
		Steps:       make(map[string]Step, len(d.Flow)),
	}
	for id, rec := range d.Flow {
		step, err := rec.toStep(id)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", id, err)
		}
		f.Steps[id] = step
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *StepRecord) toStep(id string) (Step, error) {
	msgs, err := r.messageStrings()
	if err != nil {
		return Step{}, err
	}
	s := Step{
		ID:             id,
		Messages:       msgs,
		Action:         r.ActionType,
		Next:           r.NextStep,
		IsProgressStep: r.IsProgressStep,
		BranchStart:    r.BranchStart,
		AutoContinue:   r.AutoContinue,
		MinLength:      r.MinLength,
	}
	if r.DelayMs > 0 {
		s.Delay = time.Duration(r.DelayMs) * time.Millisecond
	}
	if r.Options != nil {
		s.Buttons = r.Options.Buttons
		s.Items = r.Options.Items
		if r.Options.Type != "" || r.Options.Placeholder != "" {
			s.Input = &InputSpec{Type: r.Options.Type, Placeholder: r.Options.Placeholder}
		}
		if len(r.Options.Fields) > 0 {
			s.Form = &FormSpec{Fields: r.Options.Fields, ConsentText: r.Options.ConsentText}
		}
	}
	if r.SaveKey != "" {
		key := r.SaveKey
		s.Handler = func(resp Response, data Data) {
			data[key] = responseValue(resp)
		}
	}
	if err := s.Validate(); err != nil {
		return Step{}, err
	}
	return s, nil
}

// responseValue picks the storable value out of a typed response.
func responseValue(resp Response) any {
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
