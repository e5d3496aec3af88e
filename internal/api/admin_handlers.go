// Package api provides agent provisioning, flow-document and lead handlers
// for the dashboard and the flow editor.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/util"
)

// createAgentHandler handles POST /agents.
func (s *Server) createAgentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var agent models.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		slog.Warn("Server.createAgentHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if agent.Name == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Agent name is required"))
		return
	}
	if agent.ID == "" {
		agent.ID = util.GenerateAgentID()
	}
	if agent.Subscription == "" {
		agent.Subscription = models.SubscriptionTrialing
	}
	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	if err := s.st.SaveAgent(agent); err != nil {
		slog.Error("Server.createAgentHandler: save failed", "error", err, "agentID", agent.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save agent"))
		return
	}
	slog.Info("Server.createAgentHandler: agent created", "agentID", agent.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(agent))
}

// getAgentHandler handles GET /agents/{id}.
func (s *Server) getAgentHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	agent, err := s.st.GetAgent(id)
	if err != nil {
		slog.Error("Server.getAgentHandler: lookup failed", "error", err, "agentID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load agent"))
		return
	}
	if agent == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Agent not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(agent))
}

// listLeadsHandler handles GET /agents/{id}/leads.
func (s *Server) listLeadsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	leads, err := s.st.ListLeadsByAgent(id)
	if err != nil {
		slog.Error("Server.listLeadsHandler: query failed", "error", err, "agentID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load leads"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}

// putFlowHandler handles PUT /flows/{id}: the editor publishes a flow
// document. The document is decoded into a runnable flow once before
// saving, so a malformed graph is rejected at publish time rather than
// discovered mid-conversation.
func (s *Server) putFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")

	var doc models.FlowDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		slog.Warn("Server.putFlowHandler: failed to decode JSON", "error", err, "flowID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	doc.ID = id

	if _, err := doc.ToFlow(); err != nil {
		slog.Warn("Server.putFlowHandler: flow document rejected", "error", err, "flowID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Malformed flow document: "+err.Error()))
		return
	}

	if err := s.st.SaveFlowDocument(doc); err != nil {
		slog.Error("Server.putFlowHandler: save failed", "error", err, "flowID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
		return
	}
	slog.Info("Server.putFlowHandler: flow published", "flowID", id, "steps", len(doc.Flow))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow published", nil))
}

// getFlowHandler handles GET /flows/{id}.
func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.st.GetFlowDocument(id)
	if err != nil {
		slog.Error("Server.getFlowHandler: lookup failed", "error", err, "flowID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load flow"))
		return
	}
	if doc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(doc))
}
