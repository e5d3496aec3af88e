// Package store: PostgreSQL-backed implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/util"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists the document store in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveAgent stores or replaces an agent record.
func (s *PostgresStore) SaveAgent(agent models.Agent) error {
	now := time.Now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, email, phone, active_flow_id, subscription, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			active_flow_id = EXCLUDED.active_flow_id, subscription = EXCLUDED.subscription,
			updated_at = EXCLUDED.updated_at`,
		agent.ID, agent.Name, agent.Email, agent.Phone, agent.ActiveFlowID, string(agent.Subscription), agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAgent failed", "error", err, "agentID", agent.ID)
		return fmt.Errorf("failed to save agent %s: %w", agent.ID, err)
	}
	slog.Debug("PostgresStore SaveAgent succeeded", "agentID", agent.ID)
	return nil
}

// GetAgent retrieves an agent, or nil when none exists.
func (s *PostgresStore) GetAgent(id string) (*models.Agent, error) {
	var a models.Agent
	var subscription string
	err := s.db.QueryRow(`
		SELECT id, name, email, phone, active_flow_id, subscription, created_at, updated_at
		FROM agents WHERE id = $1`, id).Scan(
		&a.ID, &a.Name, &a.Email, &a.Phone, &a.ActiveFlowID, &subscription, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetAgent not found", "agentID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAgent failed", "error", err, "agentID", id)
		return nil, fmt.Errorf("failed to query agent %s: %w", id, err)
	}
	a.Subscription = models.SubscriptionStatus(subscription)
	return &a, nil
}

// SaveFlowDocument stores or replaces a flow document as JSONB.
func (s *PostgresStore) SaveFlowDocument(doc models.FlowDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		slog.Error("PostgresStore SaveFlowDocument marshal failed", "error", err, "flowID", doc.ID)
		return fmt.Errorf("failed to marshal flow document %s: %w", doc.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO flow_documents (id, name, document, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.Name, string(raw), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveFlowDocument failed", "error", err, "flowID", doc.ID)
		return fmt.Errorf("failed to save flow document %s: %w", doc.ID, err)
	}
	slog.Debug("PostgresStore SaveFlowDocument succeeded", "flowID", doc.ID, "steps", len(doc.Flow))
	return nil
}

// GetFlowDocument retrieves a flow document, or nil when none exists.
func (s *PostgresStore) GetFlowDocument(id string) (*models.FlowDocument, error) {
	var raw string
	err := s.db.QueryRow(`SELECT document FROM flow_documents WHERE id = $1`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetFlowDocument not found", "flowID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowDocument failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to query flow document %s: %w", id, err)
	}
	var doc models.FlowDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		slog.Error("PostgresStore GetFlowDocument unmarshal failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to decode flow document %s: %w", id, err)
	}
	return &doc, nil
}

// AddLead inserts a lead, assigning id and server timestamp when unset.
func (s *PostgresStore) AddLead(lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	if lead.ID == "" {
		lead.ID = util.GenerateLeadID()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(lead.Payload)
	if err != nil {
		slog.Error("PostgresStore AddLead marshal failed", "error", err, "leadID", lead.ID)
		return fmt.Errorf("failed to marshal lead payload: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO leads (id, agent_id, source, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		lead.ID, lead.AgentID, lead.Source, lead.Status, string(payload), lead.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddLead failed", "error", err, "leadID", lead.ID, "agentID", lead.AgentID)
		return fmt.Errorf("failed to insert lead for agent %s: %w", lead.AgentID, err)
	}
	slog.Debug("PostgresStore AddLead succeeded", "leadID", lead.ID, "agentID", lead.AgentID)
	return nil
}

// ListLeadsByAgent returns an agent's leads, newest first.
func (s *PostgresStore) ListLeadsByAgent(agentID string) ([]models.Lead, error) {
	rows, err := s.db.Query(`
		SELECT id, agent_id, source, status, payload, created_at
		FROM leads WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
	if err != nil {
		slog.Error("PostgresStore ListLeadsByAgent query failed", "error", err, "agentID", agentID)
		return nil, fmt.Errorf("failed to query leads for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var payload string
		if err := rows.Scan(&l.ID, &l.AgentID, &l.Source, &l.Status, &payload, &l.CreatedAt); err != nil {
			slog.Error("PostgresStore ListLeadsByAgent scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &l.Payload); err != nil {
				slog.Error("PostgresStore ListLeadsByAgent payload unmarshal failed", "error", err, "leadID", l.ID)
				l.Payload = map[string]string{}
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListLeadsByAgent rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("PostgresStore ListLeadsByAgent succeeded", "agentID", agentID, "count", len(leads))
	return leads, nil
}

// SaveConversationState stores or replaces a conversation snapshot.
func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	var dataJSON []byte
	if len(state.Data) > 0 {
		raw, err := json.Marshal(state.Data)
		if err != nil {
			slog.Error("PostgresStore SaveConversationState marshal failed", "error", err, "conversationID", state.ConversationID)
			return err
		}
		dataJSON = raw
	} else {
		dataJSON = []byte("{}")
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_states
		(conversation_id, agent_id, flow_id, current_step_id, awaiting, completed, data, progress_step, progress_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (conversation_id) DO UPDATE SET
			current_step_id = EXCLUDED.current_step_id, awaiting = EXCLUDED.awaiting,
			completed = EXCLUDED.completed, data = EXCLUDED.data,
			progress_step = EXCLUDED.progress_step, progress_total = EXCLUDED.progress_total,
			updated_at = EXCLUDED.updated_at`,
		state.ConversationID, state.AgentID, state.FlowID, state.CurrentStepID,
		state.Awaiting, state.Completed, string(dataJSON), state.ProgressStep, state.ProgressTotal,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "conversationID", state.ConversationID)
		return err
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "conversationID", state.ConversationID, "step", state.CurrentStepID)
	return nil
}

// GetConversationState retrieves a snapshot, or nil when none exists.
func (s *PostgresStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	var state models.ConversationState
	var dataJSON string
	err := s.db.QueryRow(`
		SELECT conversation_id, agent_id, flow_id, current_step_id, awaiting, completed, data, progress_step, progress_total, created_at, updated_at
		FROM conversation_states WHERE conversation_id = $1`, conversationID).Scan(
		&state.ConversationID, &state.AgentID, &state.FlowID, &state.CurrentStepID,
		&state.Awaiting, &state.Completed, &dataJSON, &state.ProgressStep, &state.ProgressTotal,
		&state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	if dataJSON != "" {
		state.Data = make(models.Data)
		if err := json.Unmarshal([]byte(dataJSON), &state.Data); err != nil {
			slog.Error("PostgresStore GetConversationState data unmarshal failed", "error", err, "conversationID", conversationID)
			state.Data = make(models.Data)
		}
	}
	return &state, nil
}

// DeleteConversationState removes a snapshot.
func (s *PostgresStore) DeleteConversationState(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = $1`, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("PostgresStore DeleteConversationState succeeded", "conversationID", conversationID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
