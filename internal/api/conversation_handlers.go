// Package api provides conversation lifecycle handlers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/flow"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// alternateExperience is returned when no agent identifier accompanies the
// request: the widget shows a generic landing instead of a conversation.
type alternateExperience struct {
	Mode    string `json:"mode"`
	Message string `json:"message"`
}

// startConversationHandler handles POST /conversations. The agent reference
// comes from the query string (the hosting page's referral link) or the
// JSON body.
func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startConversationHandler: processing request", "method", r.Method, "path", r.URL.Path)

	var req models.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.startConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if ref := r.URL.Query().Get("agent"); ref != "" {
		req.AgentRef = ref
	}

	// No referral: present the alternate, non-conversational experience
	// rather than failing.
	if req.AgentRef == "" {
		slog.Info("Server.startConversationHandler: no agent reference, serving alternate experience")
		writeJSONResponse(w, http.StatusOK, models.Success(alternateExperience{
			Mode:    "landing",
			Message: "Analiza conversațională este disponibilă doar printr-un link de agent.",
		}))
		return
	}

	agent, err := s.st.GetAgent(req.AgentRef)
	if err != nil {
		slog.Error("Server.startConversationHandler: agent lookup failed", "error", err, "agentRef", req.AgentRef)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load agent"))
		return
	}
	if agent == nil {
		slog.Warn("Server.startConversationHandler: agent not found", "agentRef", req.AgentRef)
		writeJSONResponse(w, errorStatus(models.ErrAgentNotFound), models.Error("Agent not found"))
		return
	}
	// Upstream configuration problems block the conversation before any
	// turn begins.
	if err := agent.CanReceiveLeads(); err != nil {
		slog.Warn("Server.startConversationHandler: agent cannot receive leads", "error", err, "agentID", agent.ID)
		writeJSONResponse(w, errorStatus(err), models.Error("Acest formular nu este momentan disponibil. Te rugăm să revii mai târziu."))
		return
	}

	flowID := req.FlowID
	if flowID == "" {
		flowID = agent.ActiveFlowID
	}
	f, err := s.resolveFlow(flowID)
	if err != nil {
		slog.Error("Server.startConversationHandler: flow resolution failed", "error", err, "flowID", flowID)
		writeJSONResponse(w, errorStatus(err), models.Error("Failed to load conversation flow"))
		return
	}

	conv := flow.NewConversation(f, agent.ID, s.conversationOptions()...)
	mc := &managedConversation{conv: conv}
	s.registerConversation(mc)

	mc.mu.Lock()
	msgs, err := conv.Start(r.Context())
	mc.mu.Unlock()
	if err != nil {
		slog.Error("Server.startConversationHandler: conversation halted on start", "error", err, "conversationID", conv.ID())
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Conversation configuration error"))
		return
	}

	slog.Info("Server.startConversationHandler: conversation started", "conversationID", conv.ID(), "agentID", agent.ID, "flowID", f.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(turnPayload(conv, msgs)))
}

// conversationResponseHandler handles POST /conversations/{id}/response.
func (s *Server) conversationResponseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.conversationResponseHandler: processing response", "conversationID", id)

	var resp models.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		slog.Warn("Server.conversationResponseHandler: failed to decode JSON", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	mc, err := s.getConversation(r.Context(), id)
	if err != nil {
		slog.Error("Server.conversationResponseHandler: conversation lookup failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if mc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	mc.mu.Lock()
	msgs, err := mc.conv.ProcessResponse(r.Context(), resp)
	mc.mu.Unlock()
	if err != nil {
		slog.Error("Server.conversationResponseHandler: conversation halted", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Conversation configuration error"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(turnPayload(mc.conv, msgs)))
}

// getConversationHandler handles GET /conversations/{id}: full transcript
// plus the current affordance.
func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	mc, err := s.getConversation(r.Context(), id)
	if err != nil {
		slog.Error("Server.getConversationHandler: conversation lookup failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if mc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	mc.mu.Lock()
	payload := turnPayload(mc.conv, mc.conv.Messages())
	mc.mu.Unlock()
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

// turnPayload assembles the widget payload for one turn: the appended
// messages plus everything needed to render the next affordance.
func turnPayload(conv *flow.Conversation, msgs []models.Message) models.ConversationTurn {
	turn := models.ConversationTurn{
		ConversationID: conv.ID(),
		Messages:       msgs,
		Progress:       conv.Progress(),
		Completed:      conv.Completed(),
	}
	if step, ok := conv.CurrentStep(); ok && conv.Awaiting() {
		turn.Action = step.Action
		turn.Buttons = step.Buttons
		turn.Input = step.Input
		turn.Form = step.Form
		turn.Items = step.Items
	} else if conv.Completed() {
		turn.Action = models.ActionEnd
	}
	return turn
}
