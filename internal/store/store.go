// Package store provides storage backends for agents, flow documents,
// leads and conversation snapshots.
//
// Three implementations share one interface: an in-memory store for tests
// and development, an SQLite store for single-node deployments and a
// PostgreSQL store for shared deployments.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/util"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Store is the document-store contract the engine and API depend on.
type Store interface {
	SaveAgent(agent models.Agent) error
	GetAgent(id string) (*models.Agent, error)

	SaveFlowDocument(doc models.FlowDocument) error
	GetFlowDocument(id string) (*models.FlowDocument, error)

	AddLead(lead models.Lead) error
	ListLeadsByAgent(agentID string) ([]models.Lead, error)

	SaveConversationState(state models.ConversationState) error
	GetConversationState(conversationID string) (*models.ConversationState, error)
	DeleteConversationState(conversationID string) error

	Close() error
}

// InMemoryStore is a mutex-guarded map-backed store for tests and dev runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	agents map[string]models.Agent
	flows  map[string]models.FlowDocument
	leads  []models.Lead
	states map[string]models.ConversationState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents: make(map[string]models.Agent),
		flows:  make(map[string]models.FlowDocument),
		states: make(map[string]models.ConversationState),
	}
}

// SaveAgent stores or replaces an agent record.
func (s *InMemoryStore) SaveAgent(agent models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
	return nil
}

// GetAgent retrieves an agent, or nil when none exists.
func (s *InMemoryStore) GetAgent(id string) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, nil
	}
	return &agent, nil
}

// SaveFlowDocument stores or replaces a flow document.
func (s *InMemoryStore) SaveFlowDocument(doc models.FlowDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[doc.ID] = doc
	return nil
}

// GetFlowDocument retrieves a flow document, or nil when none exists.
func (s *InMemoryStore) GetFlowDocument(id string) (*models.FlowDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.flows[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// AddLead appends a lead, assigning id and server timestamp when unset.
func (s *InMemoryStore) AddLead(lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = util.GenerateLeadID()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	s.leads = append(s.leads, lead)
	slog.Debug("InMemoryStore AddLead succeeded", "leadID", lead.ID, "agentID", lead.AgentID)
	return nil
}

// ListLeadsByAgent returns an agent's leads, newest first.
func (s *InMemoryStore) ListLeadsByAgent(agentID string) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.AgentID == agentID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SaveConversationState stores or replaces a conversation snapshot.
func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = state
	return nil
}

// GetConversationState retrieves a snapshot, or nil when none exists.
func (s *InMemoryStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// DeleteConversationState removes a snapshot.
func (s *InMemoryStore) DeleteConversationState(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conversationID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
