package cnst

// WebSocket close codes used by the hub (RFC 6455 section 7.4.1)
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)
