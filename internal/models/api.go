// Package models: standard API response envelope shared by all handlers.
package models

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful request.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed request.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// ConversationTurn is the payload returned to the widget after starting a
// conversation or submitting a response: the newly appended transcript
// messages plus everything needed to render the next affordance.
type ConversationTurn struct {
	ConversationID string         `json:"conversationId"`
	Messages       []Message      `json:"messages"`
	Progress       float64        `json:"progress"`
	Action         ActionType     `json:"action,omitempty"`
	Buttons        []ButtonOption `json:"buttons,omitempty"`
	Input          *InputSpec     `json:"input,omitempty"`
	Form           *FormSpec      `json:"form,omitempty"`
	Items          []string       `json:"items,omitempty"`
	Completed      bool           `json:"completed"`
}

// StartConversationRequest selects which agent's active flow to run.
type StartConversationRequest struct {
	AgentRef string `json:"agentRef,omitempty"`
	FlowID   string `json:"flowId,omitempty"`
}
