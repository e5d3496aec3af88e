// Package flow defines the collaborator interfaces the engine depends on.
package flow

import (
	"context"
	"time"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// StateManager persists conversation snapshots so an HTTP-driven
// conversation can resume at its current step after a process restart.
type StateManager interface {
	// SaveConversationState stores or replaces a conversation snapshot.
	SaveConversationState(ctx context.Context, state models.ConversationState) error

	// GetConversationState retrieves a snapshot, or nil when none exists.
	GetConversationState(ctx context.Context, conversationID string) (*models.ConversationState, error)

	// DeleteConversationState removes a conversation snapshot.
	DeleteConversationState(ctx context.Context, conversationID string) error
}

// LeadSink persists the final accumulated response bag as a lead record.
// Writes are fire-and-forget relative to the state machine: a sink failure
// must never stall the conversation's advance to its thank-you step.
type LeadSink interface {
	AddLead(lead models.Lead) error
}

// Timer schedules delayed actions, e.g. re-engagement nudges on abandoned
// channel conversations.
type Timer interface {
	// ScheduleAfter schedules a function to run after a delay and returns
	// a cancellation id.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// ScheduleAt schedules a function to run at a specific time.
	ScheduleAt(when time.Time, fn func()) (string, error)

	// Cancel cancels a scheduled function by id.
	Cancel(id string) error

	// Stop cancels all scheduled functions.
	Stop()
}
