package cnst

// Tracer names used across the services
const (
	// TraceHub is the tracer name for the broadcast hub
	TraceHub = "algoroom/hub"
	// TraceAPIServer is the tracer name for REST handlers
	TraceAPIServer = "algoroom/apiserver"
)

// Common span names
const (
	SpanHubBroadcast = "hub.broadcast"
	SpanHubAttach    = "hub.attach"
	SpanHubDetach    = "hub.detach"
	SpanRelayPublish = "hub.relay.publish"
)

// Common attribute keys
const (
	AttrSessionID    = "session.id"
	AttrUpdateType   = "update.type"
	AttrEndpointID   = "endpoint.id"
	AttrParticipants = "session.participants"
	AttrDelivered    = "broadcast.delivered"
)
