package cnst

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not resolve
	ErrSessionNotFound = errors.New("session not found")
	// ErrSyncFailed is returned when a session load or code push fails
	ErrSyncFailed = errors.New("sync failed")
	// ErrConnectionLost is returned when a transport closes without being asked to
	ErrConnectionLost = errors.New("connection lost")
	// ErrProtocol is returned for malformed inbound frames
	ErrProtocol = errors.New("protocol error")
	// ErrMaxReconnectAttemptsExceeded is reported once a transport gives up reconnecting
	ErrMaxReconnectAttemptsExceeded = errors.New("max reconnect attempts exceeded")
	// ErrEndpointClosed is returned when sending to an endpoint that is tearing down
	ErrEndpointClosed = errors.New("endpoint closed")
	// ErrSendQueueFull is returned when an endpoint's outbound queue is saturated
	ErrSendQueueFull = errors.New("send queue is full")
	// ErrHubShutdown is returned when attaching to a hub that is shutting down
	ErrHubShutdown = errors.New("hub is shut down")
	// ErrInvalidLanguage is returned for languages outside the supported set
	ErrInvalidLanguage = errors.New("invalid language")
)
