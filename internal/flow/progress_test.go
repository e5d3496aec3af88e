package flow

import (
	"testing"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

func linearFlow() *models.Flow {
	return &models.Flow{
		ID:          "linear",
		StartStepID: "a",
		Steps: map[string]models.Step{
			"a": {ID: "a", Action: models.ActionInput, Next: "b", IsProgressStep: true},
			"b": {ID: "b", Action: models.ActionInput, Next: "c", IsProgressStep: true},
			"c": {ID: "c", Action: models.ActionEnd},
		},
	}
}

func TestCountProgressSteps_Linear(t *testing.T) {
	if got := CountProgressSteps(linearFlow(), "a"); got != 2 {
		t.Errorf("CountProgressSteps = %d, want 2", got)
	}
}

func TestCountProgressSteps_FromMidFlow(t *testing.T) {
	if got := CountProgressSteps(linearFlow(), "b"); got != 1 {
		t.Errorf("CountProgressSteps = %d, want 1", got)
	}
}

func TestCountProgressSteps_FollowsButtonTargets(t *testing.T) {
	f := &models.Flow{
		ID:          "branchy",
		StartStepID: "root",
		Steps: map[string]models.Step{
			"root": {
				ID:     "root",
				Action: models.ActionButtons,
				Buttons: []models.ButtonOption{
					{Label: "stânga", NextStep: "left"},
					{Label: "dreapta", NextStep: "right"},
				},
				IsProgressStep: true,
			},
			"left":  {ID: "left", Action: models.ActionInput, IsProgressStep: true},
			"right": {ID: "right", Action: models.ActionInput, IsProgressStep: true},
		},
	}
	if got := CountProgressSteps(f, "root"); got != 3 {
		t.Errorf("CountProgressSteps = %d, want 3", got)
	}
}

func TestCountProgressSteps_FunctionEdgeTerminatesWalk(t *testing.T) {
	f := &models.Flow{
		ID:          "fn",
		StartStepID: "a",
		Steps: map[string]models.Step{
			"a": {ID: "a", Action: models.ActionInput, IsProgressStep: true,
				NextFn: func(resp models.Response, data models.Data) string { return "b" }},
			"b": {ID: "b", Action: models.ActionInput, IsProgressStep: true},
		},
	}
	// The function edge cannot be followed statically.
	if got := CountProgressSteps(f, "a"); got != 1 {
		t.Errorf("CountProgressSteps = %d, want 1", got)
	}
}

func TestCountProgressSteps_UnknownStepSkipped(t *testing.T) {
	f := &models.Flow{
		ID:          "broken",
		StartStepID: "a",
		Steps: map[string]models.Step{
			"a": {ID: "a", Action: models.ActionInput, Next: "missing", IsProgressStep: true},
		},
	}
	if got := CountProgressSteps(f, "a"); got != 1 {
		t.Errorf("CountProgressSteps = %d, want 1", got)
	}
}

func TestCountProgressSteps_EmptyInputs(t *testing.T) {
	if got := CountProgressSteps(nil, "a"); got != 0 {
		t.Errorf("nil flow should count 0, got %d", got)
	}
	if got := CountProgressSteps(linearFlow(), ""); got != 0 {
		t.Errorf("empty start should count 0, got %d", got)
	}
}

func TestCountProgressSteps_MasterDeathBranch(t *testing.T) {
	f := MasterFlow()
	// Six branch questions plus the shared contact step.
	if got := CountProgressSteps(f, "deces_intro"); got != 7 {
		t.Errorf("death branch count = %d, want 7", got)
	}
}
