package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	s := NewServer(st, WithInstantRender())
	return s, st
}

func saveActiveAgent(t *testing.T, st store.Store, id string) {
	t.Helper()
	err := st.SaveAgent(models.Agent{
		ID:           id,
		Name:         "Maria Ionescu",
		Email:        "maria@example.ro",
		Subscription: models.SubscriptionActive,
	})
	if err != nil {
		t.Fatalf("save agent: %v", err)
	}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func decodeTurn(t *testing.T, rec *httptest.ResponseRecorder) models.ConversationTurn {
	t.Helper()
	resp := decodeResponse(t, rec)
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	var turn models.ConversationTurn
	if err := json.Unmarshal(raw, &turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	return turn
}

func TestStartConversationWithoutAgentServesLanding(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/conversations", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.(map[string]any)
	if !ok || result["mode"] != "landing" {
		t.Errorf("expected landing payload, got %v", resp.Result)
	}
}

func TestStartConversationUnknownAgent(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_necunoscut", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStartConversationBlockedAgent(t *testing.T) {
	s, st := newTestServer(t)
	st.SaveAgent(models.Agent{
		ID:           "ag_blocat",
		Name:         "Inactiv",
		Email:        "x@example.ro",
		Subscription: models.SubscriptionInactive,
	})
	req := httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_blocat", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Message, "nu este momentan disponibil") {
		t.Errorf("expected the blocking message, got %q", resp.Message)
	}
}

func TestStartConversationRendersFirstTurn(t *testing.T) {
	s, st := newTestServer(t)
	saveActiveAgent(t, st, "ag_1")

	req := httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	turn := decodeTurn(t, rec)
	if turn.ConversationID == "" {
		t.Error("turn should carry a conversation id")
	}
	if len(turn.Messages) == 0 {
		t.Error("first turn should carry the intro messages")
	}
	if turn.Action != models.ActionButtons || len(turn.Buttons) == 0 {
		t.Errorf("first affordance should be the intro button, got %q / %v", turn.Action, turn.Buttons)
	}
	if turn.Completed {
		t.Error("fresh conversation must not be completed")
	}
}

func TestConversationResponseAdvancesFlow(t *testing.T) {
	s, st := newTestServer(t)
	saveActiveAgent(t, st, "ag_1")

	req := httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	turn := decodeTurn(t, rec)

	body, _ := json.Marshal(models.Response{Text: turn.Buttons[0].Label, OptionIndex: 0})
	req = httptest.NewRequest(http.MethodPost, "/conversations/"+turn.ConversationID+"/response", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	next := decodeTurn(t, rec)
	if next.Action != models.ActionInput {
		t.Errorf("second affordance should be the name input, got %q", next.Action)
	}
}

func TestConversationResponseUnknownConversation(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(models.Response{Text: "x"})
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv_lipsa/response", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetConversationReturnsTranscript(t *testing.T) {
	s, st := newTestServer(t)
	saveActiveAgent(t, st, "ag_1")

	req := httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	turn := decodeTurn(t, rec)

	req = httptest.NewRequest(http.MethodGet, "/conversations/"+turn.ConversationID, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	full := decodeTurn(t, rec)
	if len(full.Messages) != len(turn.Messages) {
		t.Errorf("transcript length = %d, want %d", len(full.Messages), len(turn.Messages))
	}
}

func TestConversationResumesFromSnapshotAfterRestart(t *testing.T) {
	st := store.NewInMemoryStore()
	first := NewServer(st, WithInstantRender())
	saveActiveAgent(t, st, "ag_1")

	req := httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_1", nil)
	rec := httptest.NewRecorder()
	first.Handler().ServeHTTP(rec, req)
	turn := decodeTurn(t, rec)

	// A new server over the same store simulates a process restart.
	second := NewServer(st, WithInstantRender())
	body, _ := json.Marshal(models.Response{Text: "Continuă", OptionIndex: 0})
	req = httptest.NewRequest(http.MethodPost, "/conversations/"+turn.ConversationID+"/response", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	second.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("resumed response status = %d, body %s", rec.Code, rec.Body.String())
	}
	next := decodeTurn(t, rec)
	if next.Action != models.ActionInput {
		t.Errorf("resumed conversation should expose the name input, got %q", next.Action)
	}
}

func TestCreateAndGetAgent(t *testing.T) {
	s, _ := newTestServer(t)
	body := []byte(`{"name":"Dan Pavel","phone":"0711222333"}`)
	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	agent, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result: %v", resp.Result)
	}
	id, _ := agent["id"].(string)
	if id == "" {
		t.Fatal("created agent should get an id")
	}
	if agent["subscription"] != string(models.SubscriptionTrialing) {
		t.Errorf("default subscription = %v, want trialing", agent["subscription"])
	}

	req = httptest.NewRequest(http.MethodGet, "/agents/"+id, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("get agent status = %d", rec.Code)
	}
}

func TestCreateAgentRequiresName(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPutFlowRejectsMalformedDocument(t *testing.T) {
	s, _ := newTestServer(t)
	// Start step points nowhere.
	body := []byte(`{"startStepId":"lipsa","flow":{}}`)
	req := httptest.NewRequest(http.MethodPut, "/flows/flow_rau", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPutAndGetFlow(t *testing.T) {
	s, _ := newTestServer(t)
	body := []byte(`{
		"startStepId": "start",
		"flow": {
			"start": {"message": "Salut!", "actionType": "input", "nextStep": "final", "saveKey": "raspuns"},
			"final": {"message": "Gata.", "actionType": "end"}
		}
	}`)
	req := httptest.NewRequest(http.MethodPut, "/flows/flow_bun", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/flows/flow_bun", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	doc, ok := resp.Result.(map[string]any)
	if !ok || doc["id"] != "flow_bun" {
		t.Errorf("unexpected flow document: %v", resp.Result)
	}
}

func TestLeadsListedForAgent(t *testing.T) {
	s, st := newTestServer(t)
	saveActiveAgent(t, st, "ag_1")
	st.AddLead(models.Lead{AgentID: "ag_1", Source: models.LeadSourceClient, Status: models.LeadStatusNew,
		Payload: map[string]string{"nume": "Ana"}})

	req := httptest.NewRequest(http.MethodGet, "/agents/ag_1/leads", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	leads, ok := resp.Result.([]any)
	if !ok || len(leads) != 1 {
		t.Errorf("expected one lead, got %v", resp.Result)
	}
}

func TestAgentActiveFlowUsedWhenSet(t *testing.T) {
	s, st := newTestServer(t)
	// Publish a custom flow, then point the agent at it.
	body := []byte(`{
		"startStepId": "salut",
		"flow": {
			"salut": {"message": "Flux personalizat.", "actionType": "end"}
		}
	}`)
	req := httptest.NewRequest(http.MethodPut, "/flows/flow_custom", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d", rec.Code)
	}
	st.SaveAgent(models.Agent{
		ID:           "ag_cu_flux",
		Name:         "Cu Flux",
		Email:        "x@example.ro",
		ActiveFlowID: "flow_custom",
		Subscription: models.SubscriptionActive,
	})

	req = httptest.NewRequest(http.MethodPost, "/conversations?agent=ag_cu_flux", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	turn := decodeTurn(t, rec)
	if !turn.Completed {
		t.Error("single end-step flow should complete immediately")
	}
	if len(turn.Messages) == 0 || turn.Messages[0].Content != "Flux personalizat." {
		t.Errorf("custom flow message not rendered: %v", turn.Messages)
	}
}
