// Package store: SQLite-backed implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/util"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists the document store in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is
// a file path; a missing parent directory is created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveAgent stores or replaces an agent record.
func (s *SQLiteStore) SaveAgent(agent models.Agent) error {
	now := time.Now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO agents (id, name, email, phone, active_flow_id, subscription, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, agent.Name, agent.Email, agent.Phone, agent.ActiveFlowID, string(agent.Subscription), agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAgent failed", "error", err, "agentID", agent.ID)
		return fmt.Errorf("failed to save agent %s: %w", agent.ID, err)
	}
	slog.Debug("SQLiteStore SaveAgent succeeded", "agentID", agent.ID)
	return nil
}

// GetAgent retrieves an agent, or nil when none exists.
func (s *SQLiteStore) GetAgent(id string) (*models.Agent, error) {
	var a models.Agent
	var subscription string
	err := s.db.QueryRow(`
		SELECT id, name, email, phone, active_flow_id, subscription, created_at, updated_at
		FROM agents WHERE id = ?`, id).Scan(
		&a.ID, &a.Name, &a.Email, &a.Phone, &a.ActiveFlowID, &subscription, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetAgent not found", "agentID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAgent failed", "error", err, "agentID", id)
		return nil, fmt.Errorf("failed to query agent %s: %w", id, err)
	}
	a.Subscription = models.SubscriptionStatus(subscription)
	return &a, nil
}

// SaveFlowDocument stores or replaces a flow document as JSON.
func (s *SQLiteStore) SaveFlowDocument(doc models.FlowDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowDocument marshal failed", "error", err, "flowID", doc.ID)
		return fmt.Errorf("failed to marshal flow document %s: %w", doc.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO flow_documents (id, name, document, updated_at)
		VALUES (?, ?, ?, ?)`, doc.ID, doc.Name, string(raw), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveFlowDocument failed", "error", err, "flowID", doc.ID)
		return fmt.Errorf("failed to save flow document %s: %w", doc.ID, err)
	}
	slog.Debug("SQLiteStore SaveFlowDocument succeeded", "flowID", doc.ID, "steps", len(doc.Flow))
	return nil
}

// GetFlowDocument retrieves a flow document, or nil when none exists.
func (s *SQLiteStore) GetFlowDocument(id string) (*models.FlowDocument, error) {
	var raw string
	err := s.db.QueryRow(`SELECT document FROM flow_documents WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFlowDocument not found", "flowID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowDocument failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to query flow document %s: %w", id, err)
	}
	var doc models.FlowDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		slog.Error("SQLiteStore GetFlowDocument unmarshal failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to decode flow document %s: %w", id, err)
	}
	return &doc, nil
}

// AddLead inserts a lead, assigning id and server timestamp when unset.
func (s *SQLiteStore) AddLead(lead models.Lead) error {
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
		slog.Error("SQLiteStore AddLead marshal failed", "error", err, "leadID", lead.ID)
		return fmt.Errorf("failed to marshal lead payload: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO leads (id, agent_id, source, status, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.AgentID, lead.Source, lead.Status, string(payload), lead.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddLead failed", "error", err, "leadID", lead.ID, "agentID", lead.AgentID)
		return fmt.Errorf("failed to insert lead for agent %s: %w", lead.AgentID, err)
	}
	slog.Debug("SQLiteStore AddLead succeeded", "leadID", lead.ID, "agentID", lead.AgentID)
	return nil
}

// ListLeadsByAgent returns an agent's leads, newest first.
func (s *SQLiteStore) ListLeadsByAgent(agentID string) ([]models.Lead, error) {
	rows, err := s.db.Query(`
		SELECT id, agent_id, source, status, payload, created_at
		FROM leads WHERE agent_id = ? ORDER BY created_at DESC`, agentID)
	if err != nil {
		slog.Error("SQLiteStore ListLeadsByAgent query failed", "error", err, "agentID", agentID)
		return nil, fmt.Errorf("failed to query leads for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var payload string
		if err := rows.Scan(&l.ID, &l.AgentID, &l.Source, &l.Status, &payload, &l.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListLeadsByAgent scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &l.Payload); err != nil {
				slog.Error("SQLiteStore ListLeadsByAgent payload unmarshal failed", "error", err, "leadID", l.ID)
				l.Payload = map[string]string{}
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListLeadsByAgent rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("SQLiteStore ListLeadsByAgent succeeded", "agentID", agentID, "count", len(leads))
	return leads, nil
}

// SaveConversationState stores or replaces a conversation snapshot.
func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	var dataJSON string
	if len(state.Data) > 0 {
		raw, err := json.Marshal(state.Data)
		if err != nil {
			slog.Error("SQLiteStore SaveConversationState marshal failed", "error", err, "conversationID", state.ConversationID)
			return err
		}
		dataJSON = string(raw)
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO conversation_states
		(conversation_id, agent_id, flow_id, current_step_id, awaiting, completed, data, progress_step, progress_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.ConversationID, state.AgentID, state.FlowID, state.CurrentStepID,
		state.Awaiting, state.Completed, dataJSON, state.ProgressStep, state.ProgressTotal,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "conversationID", state.ConversationID)
		return err
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "conversationID", state.ConversationID, "step", state.CurrentStepID)
	return nil
}

// GetConversationState retrieves a snapshot, or nil when none exists.
func (s *SQLiteStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	var state models.ConversationState
	var dataJSON string
	err := s.db.QueryRow(`
		SELECT conversation_id, agent_id, flow_id, current_step_id, awaiting, completed, data, progress_step, progress_total, created_at, updated_at
		FROM conversation_states WHERE conversation_id = ?`, conversationID).Scan(
		&state.ConversationID, &state.AgentID, &state.FlowID, &state.CurrentStepID,
		&state.Awaiting, &state.Completed, &dataJSON, &state.ProgressStep, &state.ProgressTotal,
		&state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	if dataJSON != "" {
		state.Data = make(models.Data)
		if err := json.Unmarshal([]byte(dataJSON), &state.Data); err != nil {
			slog.Error("SQLiteStore GetConversationState data unmarshal failed", "error", err, "conversationID", conversationID)
			state.Data = make(models.Data)
		}
	}
	return &state, nil
}

// DeleteConversationState removes a snapshot.
func (s *SQLiteStore) DeleteConversationState(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = ?`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("SQLiteStore DeleteConversationState succeeded", "conversationID", conversationID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
