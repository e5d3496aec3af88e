// Package flow provides the store-backed StateManager implementation.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// SaveConversationState stores or replaces a conversation snapshot.
func (sm *StoreBasedStateManager) SaveConversationState(ctx context.Context, state models.ConversationState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	if err := sm.store.SaveConversationState(state); err != nil {
		slog.Error("StateManager SaveConversationState failed", "error", err, "conversationID", state.ConversationID, "step", state.CurrentStepID)
		return err
	}
	slog.Debug("StateManager SaveConversationState succeeded", "conversationID", state.ConversationID, "step", state.CurrentStepID, "completed", state.Completed)
	return nil
}

// GetConversationState retrieves a snapshot, or nil when none exists.
func (sm *StoreBasedStateManager) GetConversationState(ctx context.Context, conversationID string) (*models.ConversationState, error) {
	state, err := sm.store.GetConversationState(conversationID)
	if err != nil {
		slog.Error("StateManager GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	if state == nil {
		slog.Debug("StateManager GetConversationState not found", "conversationID", conversationID)
		return nil, nil
	}
	slog.Debug("StateManager GetConversationState found", "conversationID", conversationID, "step", state.CurrentStepID)
	return state, nil
}

// DeleteConversationState removes a conversation snapshot.
func (sm *StoreBasedStateManager) DeleteConversationState(ctx context.Context, conversationID string) error {
	if err := sm.store.DeleteConversationState(conversationID); err != nil {
		slog.Error("StateManager DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("StateManager DeleteConversationState succeeded", "conversationID", conversationID)
	return nil
}
