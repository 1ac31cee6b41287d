package hub

import "github.com/devnovikov/algoroom/internal/protocol"

// Endpoint is one attached connection. Send must not block: implementations
// queue the update or fail with cnst.ErrSendQueueFull / cnst.ErrEndpointClosed.
type Endpoint interface {
	ID() string
	Send(update *protocol.SessionUpdate) error
	Close(code int, reason string) error
}
