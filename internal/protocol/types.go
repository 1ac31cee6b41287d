package protocol

import "time"

// Language is the programming language of a session's document
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"

	// DefaultLanguage is used when a request does not name a language
	DefaultLanguage = LanguageJavaScript
)

// UpdateType discriminates SessionUpdate records
type UpdateType string

const (
	UpdateCode              UpdateType = "code_update"
	UpdateParticipantJoined UpdateType = "participant_joined"
	UpdateParticipantLeft   UpdateType = "participant_left"
	UpdateExecutionResult   UpdateType = "execution_result"
)

type (
	// Session is the shared document as seen on the wire
	Session struct {
		ID           string    `json:"id"`
		Code         string    `json:"code"`
		Language     Language  `json:"language"`
		CreatedAt    time.Time `json:"createdAt"`
		Participants int       `json:"participants"`
	}

	// ExecutionResult is the outcome of running a session's code
	ExecutionResult struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
		Error   string `json:"error,omitempty"`
		// ExecutionTime is the run duration in milliseconds
		ExecutionTime int64 `json:"executionTime"`
	}

	// SessionUpdate is a self-contained record broadcast to every participant
	// of a session. Only the fields belonging to Type are set.
	SessionUpdate struct {
		Type            UpdateType       `json:"type"`
		SessionID       string           `json:"sessionId"`
		Code            *string          `json:"code,omitempty"`
		Language        Language         `json:"language,omitempty"`
		Participants    *int             `json:"participants,omitempty"`
		ExecutionResult *ExecutionResult `json:"executionResult,omitempty"`
		Timestamp       time.Time        `json:"timestamp"`
	}

	// CreateSessionRequest is the body of POST /sessions
	CreateSessionRequest struct {
		Language Language `json:"language,omitempty"`
	}

	// UpdateCodeRequest is the body of PUT /sessions/{id}/code
	UpdateCodeRequest struct {
		Code     *string  `json:"code"`
		Language Language `json:"language,omitempty"`
	}

	// APIError is the error body returned by the REST surface
	APIError struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Status  int    `json:"status"`
	}
)

// Error codes carried in APIError.Code
const (
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInternalError   = "INTERNAL_SERVER_ERROR"
)

// CodeValue returns the code carried by a code_update, or "" when absent
func (u *SessionUpdate) CodeValue() string {
	if u == nil || u.Code == nil {
		return ""
	}
	return *u.Code
}

// ParticipantCount returns the count carried by a join/leave update, or 0
func (u *SessionUpdate) ParticipantCount() int {
	if u == nil || u.Participants == nil {
		return 0
	}
	return *u.Participants
}
