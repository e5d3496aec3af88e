package models

import (
	"errors"
	"strings"
	"testing"
)

func TestStepValidate(t *testing.T) {
	cases := []struct {
		name    string
		step    Step
		wantErr error
	}{
		{
			name: "valid buttons step",
			step: Step{ID: "a", Action: ActionButtons, Buttons: []ButtonOption{{Label: "Da"}}},
		},
		{
			name:    "empty id",
			step:    Step{Action: ActionInput},
			wantErr: ErrEmptyStepID,
		},
		{
			name:    "invalid action",
			step:    Step{ID: "a", Action: "carousel"},
			wantErr: ErrInvalidActionType,
		},
		{
			name:    "buttons step without options",
			step:    Step{ID: "a", Action: ActionButtons},
			wantErr: ErrMissingButtons,
		},
		{
			name: "auto-continue buttons step without options",
			step: Step{ID: "a", Action: ActionButtons, AutoContinue: true, Next: "b"},
		},
		{
			name: "too many buttons",
			step: Step{ID: "a", Action: ActionButtons, Buttons: make([]ButtonOption, MaxButtonCount+1)},
			wantErr: ErrTooManyButtons,
		},
		{
			name: "label too long",
			step: Step{ID: "a", Action: ActionButtons, Buttons: []ButtonOption{
				{Label: strings.Repeat("x", MaxButtonLabelLength+1)},
			}},
			wantErr: ErrButtonLabelTooLong,
		},
		{
			name: "end step",
			step: Step{ID: "fin", Action: ActionEnd},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.step.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestFlowValidate(t *testing.T) {
	valid := Flow{
		ID:          "f",
		StartStepID: "a",
		Steps: map[string]Step{
			"a": {ID: "a", Action: ActionInput, Next: "b"},
			"b": {ID: "b", Action: ActionEnd},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid flow rejected: %v", err)
	}

	noStart := Flow{ID: "f", Steps: map[string]Step{"a": {ID: "a", Action: ActionEnd}}}
	if err := noStart.Validate(); !errors.Is(err, ErrMissingStartStep) {
		t.Errorf("expected ErrMissingStartStep, got %v", err)
	}

	danglingStart := Flow{ID: "f", StartStepID: "x", Steps: map[string]Step{"a": {ID: "a", Action: ActionEnd}}}
	if err := danglingStart.Validate(); !errors.Is(err, ErrMissingStartStep) {
		t.Errorf("expected ErrMissingStartStep, got %v", err)
	}

	badStep := Flow{
		ID:          "f",
		StartStepID: "a",
		Steps:       map[string]Step{"a": {ID: "a", Action: "carousel"}},
	}
	if err := badStep.Validate(); !errors.Is(err, ErrInvalidActionType) {
		t.Errorf("expected ErrInvalidActionType, got %v", err)
	}
}

func TestDataClone(t *testing.T) {
	original := Data{"a": 1, "b": "doi"}
	clone := original.Clone()
	clone["a"] = 99
	clone["c"] = "nou"
	if original["a"] != 1 {
		t.Error("mutating the clone must not touch the original")
	}
	if _, ok := original["c"]; ok {
		t.Error("clone additions must not leak into the original")
	}
}

func TestAgentCanReceiveLeads(t *testing.T) {
	cases := []struct {
		name    string
		agent   Agent
		wantErr error
	}{
		{
			name:  "active with email",
			agent: Agent{Subscription: SubscriptionActive, Email: "a@b.ro"},
		},
		{
			name:  "trialing with phone",
			agent: Agent{Subscription: SubscriptionTrialing, Phone: "0712"},
		},
		{
			name:    "inactive subscription",
			agent:   Agent{Subscription: SubscriptionInactive, Email: "a@b.ro"},
			wantErr: ErrInactiveAgent,
		},
		{
			name:    "no contact channel",
			agent:   Agent{Subscription: SubscriptionActive},
			wantErr: ErrNoContactChannel,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.agent.CanReceiveLeads()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("CanReceiveLeads() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestLeadValidate(t *testing.T) {
	lead := Lead{AgentID: "ag_1"}
	if err := lead.Validate(); err != nil {
		t.Errorf("valid lead rejected: %v", err)
	}
	empty := Lead{}
	if err := empty.Validate(); !errors.Is(err, ErrEmptyAgentID) {
		t.Errorf("expected ErrEmptyAgentID, got %v", err)
	}
}

func TestIsValidActionType(t *testing.T) {
	for _, at := range []ActionType{ActionButtons, ActionInput, ActionDate, ActionMultiChoice, ActionCheckbox, ActionForm, ActionScrollList, ActionEnd} {
		if !IsValidActionType(at) {
			t.Errorf("%q should be valid", at)
		}
	}
	if IsValidActionType("video") {
		t.Error("unknown action type should be invalid")
	}
}
