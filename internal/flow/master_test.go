package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

func TestMasterFlowValidates(t *testing.T) {
	if err := MasterFlow().Validate(); err != nil {
		t.Fatalf("master flow must validate: %v", err)
	}
}

func TestMasterFlowEveryNextTargetExists(t *testing.T) {
	f := MasterFlow()
	for id, step := range f.Steps {
		if step.Next != "" {
			if _, ok := f.Step(step.Next); !ok {
				t.Errorf("step %s points to missing next %q", id, step.Next)
			}
		}
		for _, opt := range step.Buttons {
			if opt.NextStep != "" {
				if _, ok := f.Step(opt.NextStep); !ok {
					t.Errorf("step %s option %q points to missing step %q", id, opt.Label, opt.NextStep)
				}
			}
		}
	}
}

// walkDeathScenario answers the full death branch with the given figures and
// returns the conversation after the final answer, one response before the
// contact form.
func walkDeathScenario(t *testing.T, c *Conversation, period, monthly, event, projects, insurance, savings string) {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	respond := func(resp models.Response) {
		t.Helper()
		if _, err := c.ProcessResponse(ctx, resp); err != nil {
			t.Fatalf("response failed at step %q: %v", c.current, err)
		}
	}
	respond(models.Response{Text: ContinueLabel})
	respond(models.Response{Text: "Ion"})
	respond(models.Response{Text: LabelDeath, OptionIndex: 0, NextStep: "deces_intro"})
	respond(models.Response{Text: period})
	respond(models.Response{Text: monthly})
	respond(models.Response{Text: event})
	respond(models.Response{Text: projects})
	respond(models.Response{Text: insurance})
	respond(models.Response{Text: savings})
}

func TestMasterFlowDeathScenarioEndToEnd(t *testing.T) {
	sink := newFakeSink()
	c := NewConversation(MasterFlow(), "ag_master", WithSleep(noSleep), WithLeadSink(sink))
	ctx := context.Background()

	walkDeathScenario(t, c, "5 ani", "2000", "20000", "0", "0", "10000")

	// The result step renders the derived figures with locale separators.
	var resultSeen bool
	for _, m := range c.Messages() {
		if strings.Contains(m.Content, "140.000") {
			resultSeen = true
		}
		if m.Author == models.AuthorEngine && strings.Contains(m.Content, "{{") {
			t.Errorf("unresolved placeholder in transcript: %q", m.Content)
		}
	}
	if !resultSeen {
		t.Error("result message should show the 140.000 EUR total need")
	}

	step, ok := c.CurrentStep()
	if !ok || step.ID != StepContact {
		t.Fatalf("expected contact step, at %q", step.ID)
	}

	if _, err := c.ProcessResponse(ctx, models.Response{Fields: map[string]string{
		"nume":    "Ion Popescu",
		"telefon": "0722111222",
		"email":   "ion@example.com",
	}}); err != nil {
		t.Fatalf("contact form: %v", err)
	}
	sink.waitForLead(t)

	if !c.Completed() {
		t.Fatal("conversation should complete after the thank-you step")
	}
	if got := c.Progress(); got != 100 {
		t.Errorf("progress = %v, want 100", got)
	}

	// Derived figures on the anchor inputs.
	data := c.Data()
	checks := map[string]float64{
		"deficit1":     120000,
		"bruteDeficit": 140000,
		"finalDeficit": 130000,
	}
	for key, want := range checks {
		if got := data[key]; got != want {
			t.Errorf("data[%s] = %v, want %v", key, got, want)
		}
	}

	leads := sink.all()
	if len(leads) != 1 {
		t.Fatalf("expected exactly one lead, got %d", len(leads))
	}
	lead := leads[0]
	if lead.Source != models.LeadSourceClient || lead.Status != models.LeadStatusNew {
		t.Errorf("lead contract violated: source=%q status=%q", lead.Source, lead.Status)
	}
	if lead.Payload["nume"] != "Ion" {
		t.Errorf("payload name = %q", lead.Payload["nume"])
	}
	if lead.Payload["contact_telefon"] != "0722111222" {
		t.Errorf("payload phone = %q", lead.Payload["contact_telefon"])
	}
	if lead.Payload["finalDeficit"] != "130.000" {
		t.Errorf("payload finalDeficit = %q, want 130.000", lead.Payload["finalDeficit"])
	}
	if lead.Payload["scenariu"] != LabelDeath {
		t.Errorf("payload scenario = %q", lead.Payload["scenariu"])
	}

	// The thank-you message greets by the collected first name.
	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Content, "Ion") {
		t.Errorf("thank-you should greet by name, got %q", last.Content)
	}
}

func TestMasterFlowDeathScenarioFullyCovered(t *testing.T) {
	c := NewConversation(MasterFlow(), "ag_master", WithSleep(noSleep))
	walkDeathScenario(t, c, "3 ani", "1000", "0", "0", "100000", "0")

	// Resources cover the need: the result step renders the good-news
	// message instead of the deficit figures.
	var goodNews bool
	for _, m := range c.Messages() {
		if strings.Contains(m.Content, "Vestea bună") {
			goodNews = true
		}
	}
	if !goodNews {
		t.Error("fully covered need should render the good-news message")
	}
}

func TestMasterFlowRetirementZeroDeficitRoutesToCongrats(t *testing.T) {
	c := NewConversation(MasterFlow(), "ag_master", WithSleep(noSleep))
	ctx := context.Background()
	c.Start(ctx)
	respond := func(resp models.Response) {
		t.Helper()
		if _, err := c.ProcessResponse(ctx, resp); err != nil {
			t.Fatalf("response failed: %v", err)
		}
	}
	respond(models.Response{Text: ContinueLabel})
	respond(models.Response{Text: "Maria"})
	respond(models.Response{Text: LabelRetirement, OptionIndex: 1, NextStep: "pensie_intro"})
	respond(models.Response{Text: "15 ani"})
	respond(models.Response{Text: "1000"})   // desired monthly
	respond(models.Response{Text: "0"})      // projects
	respond(models.Response{Text: "200000"}) // private pensions
	respond(models.Response{Text: "50000"})  // savings

	var congrats bool
	for _, m := range c.Messages() {
		if strings.Contains(m.Content, "Felicitări") {
			congrats = true
		}
	}
	if !congrats {
		t.Error("zero deficit should route through the congratulations step")
	}
	step, _ := c.CurrentStep()
	if step.ID != StepContact {
		t.Errorf("congratulations should still converge on contact, at %q", step.ID)
	}
}

func TestMasterFlowEducationMultipliesByChildren(t *testing.T) {
	c := NewConversation(MasterFlow(), "ag_master", WithSleep(noSleep))
	ctx := context.Background()
	c.Start(ctx)
	respond := func(resp models.Response) {
		t.Helper()
		if _, err := c.ProcessResponse(ctx, resp); err != nil {
			t.Fatalf("response failed: %v", err)
		}
	}
	respond(models.Response{Text: ContinueLabel})
	respond(models.Response{Text: "Dan"})
	respond(models.Response{Text: LabelEducation, OptionIndex: 2, NextStep: "studii_intro"})
	respond(models.Response{Text: "2"})     // children
	respond(models.Response{Text: "4 ani"}) // years of study
	respond(models.Response{Text: "800"})   // monthly
	respond(models.Response{Text: "20000"}) // tuition
	respond(models.Response{Text: "5000"})  // savings per child

	data := c.Data()
	if got := data["studiiDeficitFinal"]; got != 106800.0 {
		t.Errorf("studiiDeficitFinal = %v, want 106800", got)
	}
	step, _ := c.CurrentStep()
	if step.ID != StepContact {
		t.Errorf("education branch should converge on contact, at %q", step.ID)
	}
}

func TestMasterFlowNameBelowMinLengthReprompts(t *testing.T) {
	c := NewConversation(MasterFlow(), "ag_master", WithSleep(noSleep))
	ctx := context.Background()
	c.Start(ctx)
	c.ProcessResponse(ctx, models.Response{Text: ContinueLabel})
	c.ProcessResponse(ctx, models.Response{Text: "X"})
	step, _ := c.CurrentStep()
	if step.ID != "nume" {
		t.Errorf("single-letter name should be rejected, at %q", step.ID)
	}
}

func TestMasterFlowProgressRecalibratesOnBranch(t *testing.T) {
	c := NewConversation(MasterFlow(), "ag_master", WithSleep(noSleep))
	ctx := context.Background()
	c.Start(ctx)
	c.ProcessResponse(ctx, models.Response{Text: ContinueLabel})
	c.ProcessResponse(ctx, models.Response{Text: "Ion"})
	c.ProcessResponse(ctx, models.Response{Text: LabelDeath, OptionIndex: 0, NextStep: "deces_intro"})

	// Two progress steps answered plus the seven the chosen branch holds.
	if c.progressTotal != 9 {
		t.Errorf("recalibrated total = %d, want 9", c.progressTotal)
	}
	if got := c.Progress(); got <= 0 || got > 100 {
		t.Errorf("progress out of range: %v", got)
	}
}
