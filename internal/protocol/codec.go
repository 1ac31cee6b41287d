package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/devnovikov/algoroom/internal/common/cnst"
)

func now() time.Time {
	return time.Now().UTC()
}

// NewCodeUpdate builds a code_update for a whole-document replace
func NewCodeUpdate(sessionID, code string, lang Language) *SessionUpdate {
	return &SessionUpdate{
		Type:      UpdateCode,
		SessionID: sessionID,
		Code:      &code,
		Language:  lang,
		Timestamp: now(),
	}
}

// NewParticipantJoined builds a participant_joined carrying the new total
func NewParticipantJoined(sessionID string, participants int) *SessionUpdate {
	return &SessionUpdate{
		Type:         UpdateParticipantJoined,
		SessionID:    sessionID,
		Participants: &participants,
		Timestamp:    now(),
	}
}

// NewParticipantLeft builds a participant_left carrying the new total
func NewParticipantLeft(sessionID string, participants int) *SessionUpdate {
	return &SessionUpdate{
		Type:         UpdateParticipantLeft,
		SessionID:    sessionID,
		Participants: &participants,
		Timestamp:    now(),
	}
}

// NewExecutionResult builds an execution_result
func NewExecutionResult(sessionID string, result ExecutionResult) *SessionUpdate {
	return &SessionUpdate{
		Type:            UpdateExecutionResult,
		SessionID:       sessionID,
		ExecutionResult: &result,
		Timestamp:       now(),
	}
}

// Encode marshals an update into a UTF-8 JSON frame
func Encode(u *SessionUpdate) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(u)
}

// Decode parses an inbound frame. Every failure wraps cnst.ErrProtocol.
func Decode(data []byte) (*SessionUpdate, error) {
	var u SessionUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", cnst.ErrProtocol, err)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// Validate checks the discriminator and the kind-specific payload
func (u *SessionUpdate) Validate() error {
	if u == nil {
		return fmt.Errorf("%w: nil update", cnst.ErrProtocol)
	}
	if u.SessionID == "" {
		return fmt.Errorf("%w: missing sessionId", cnst.ErrProtocol)
	}
	switch u.Type {
	case UpdateCode:
		if u.Code == nil {
			return fmt.Errorf("%w: code_update without code", cnst.ErrProtocol)
		}
		if !u.Language.Valid() {
			return fmt.Errorf("%w: code_update with language %q", cnst.ErrProtocol, u.Language)
		}
	case UpdateParticipantJoined, UpdateParticipantLeft:
		if u.Participants == nil || *u.Participants < 0 {
			return fmt.Errorf("%w: %s without participant count", cnst.ErrProtocol, u.Type)
		}
	case UpdateExecutionResult:
		if u.ExecutionResult == nil {
			return fmt.Errorf("%w: execution_result without result", cnst.ErrProtocol)
		}
	default:
		return fmt.Errorf("%w: unknown update type %q", cnst.ErrProtocol, u.Type)
	}
	return nil
}
