package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/protocol"
	"github.com/devnovikov/algoroom/pkg/metrics"
	"github.com/devnovikov/algoroom/pkg/trace"
)

const persistTimeout = 2 * time.Second

// SessionStore is the part of the session store the hub needs
type SessionStore interface {
	Get(ctx context.Context, id string) (*protocol.Session, error)
	SetParticipants(ctx context.Context, id string, n int) error
}

// Hub keeps the per-session endpoint registries and fans updates out to them.
// Each live session is owned by one room goroutine; the hub mutex only guards
// the room map.
type Hub struct {
	logger     *zap.Logger
	store      SessionStore
	relay      Relay
	metrics    *metrics.Metrics
	tracer     *trace.Builder
	instanceID string

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

// Option configures a Hub
type Option func(*Hub)

// WithRelay sets the relay used to reach other instances
func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithInstanceID overrides the generated instance id
func WithInstanceID(id string) Option {
	return func(h *Hub) { h.instanceID = id }
}

func New(logger *zap.Logger, store SessionStore, opts ...Option) *Hub {
	h := &Hub{
		logger:     logger.Named("hub"),
		store:      store,
		relay:      NewMemoryRelay(),
		tracer:     trace.Tracer(cnst.TraceHub),
		instanceID: uuid.NewString(),
		rooms:      make(map[string]*room),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InstanceID identifies this hub on the relay
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Attach registers ep with the session and announces the new participant
// count to every endpoint of the session, ep included.
func (h *Hub) Attach(ctx context.Context, sessionID string, ep Endpoint) error {
	scope := h.tracer.Start(ctx, cnst.SpanHubAttach).WithAttrs(
		attribute.String(cnst.AttrSessionID, sessionID),
		attribute.String(cnst.AttrEndpointID, ep.ID()),
	)
	defer scope.End()

	if _, err := h.store.Get(scope.Ctx, sessionID); err != nil {
		reason := "store_error"
		if errors.Is(err, cnst.ErrSessionNotFound) {
			reason = "not_found"
		}
		h.metrics.AttachRejected(reason)
		scope.Fail(err)
		return err
	}

	for {
		r, err := h.acquire(sessionID)
		if err != nil {
			h.metrics.AttachRejected("shutdown")
			scope.Fail(err)
			return err
		}

		var count int
		ok := r.do(func(st *roomState) {
			if _, exists := st.endpoints[ep]; exists {
				count = len(st.endpoints)
				return
			}
			st.endpoints[ep] = struct{}{}
			count = len(st.endpoints)
			h.metrics.EndpointAttached()
			h.persist(sessionID, count)
			h.deliver(st, sessionID, protocol.NewParticipantJoined(sessionID, count), "", "local")
		})
		if !ok {
			// the room was released between lookup and submit
			continue
		}

		scope.WithAttrs(attribute.Int(cnst.AttrParticipants, count))
		h.logger.Debug("endpoint attached",
			zap.String(cnst.AttrSessionID, sessionID),
			zap.String(cnst.AttrEndpointID, ep.ID()),
			zap.Int("participants", count))
		return nil
	}
}

// Detach removes ep from the session. Remaining endpoints receive the new
// count; the last detach releases the session.
func (h *Hub) Detach(ctx context.Context, sessionID string, ep Endpoint) {
	scope := h.tracer.Start(ctx, cnst.SpanHubDetach).WithAttrs(
		attribute.String(cnst.AttrSessionID, sessionID),
		attribute.String(cnst.AttrEndpointID, ep.ID()),
	)
	defer scope.End()

	r := h.lookup(sessionID)
	if r == nil {
		return
	}

	count := -1
	r.do(func(st *roomState) {
		if _, exists := st.endpoints[ep]; !exists {
			return
		}
		delete(st.endpoints, ep)
		count = len(st.endpoints)
		h.metrics.EndpointDetached()
		h.persist(sessionID, count)
		if count == 0 {
			h.release(r)
			st.released = true
			return
		}
		h.deliver(st, sessionID, protocol.NewParticipantLeft(sessionID, count), "", "local")
	})
	if count < 0 {
		return
	}

	scope.WithAttrs(attribute.Int(cnst.AttrParticipants, count))
	h.logger.Debug("endpoint detached",
		zap.String(cnst.AttrSessionID, sessionID),
		zap.String(cnst.AttrEndpointID, ep.ID()),
		zap.Int("participants", count))
}

// Broadcast delivers update to every endpoint of the session, here and on
// peer instances
func (h *Hub) Broadcast(ctx context.Context, sessionID string, update *protocol.SessionUpdate) int {
	return h.BroadcastExcept(ctx, sessionID, update, "")
}

// BroadcastExcept is Broadcast skipping the endpoint whose ID is originID.
// It returns the number of local endpoints the update was queued for.
func (h *Hub) BroadcastExcept(ctx context.Context, sessionID string, update *protocol.SessionUpdate, originID string) int {
	scope := h.tracer.Start(ctx, cnst.SpanHubBroadcast).WithAttrs(
		attribute.String(cnst.AttrSessionID, sessionID),
		attribute.String(cnst.AttrUpdateType, string(update.Type)),
	)
	defer scope.End()

	if err := h.relay.Publish(scope.Ctx, &Envelope{Origin: h.instanceID, Except: originID, Update: update}); err != nil {
		h.logger.Warn("failed to publish update to relay",
			zap.String(cnst.AttrSessionID, sessionID),
			zap.Error(err))
		scope.Fail(err)
	} else {
		h.metrics.Relay("published")
	}

	delivered := h.deliverLocal(sessionID, update, originID, "local")
	scope.WithAttrs(attribute.Int(cnst.AttrDelivered, delivered))
	return delivered
}

// Participants returns the number of endpoints attached on this instance
func (h *Hub) Participants(sessionID string) int {
	r := h.lookup(sessionID)
	if r == nil {
		return 0
	}
	count := 0
	r.do(func(st *roomState) {
		count = len(st.endpoints)
	})
	return count
}

// Run consumes the relay and delivers updates published by other instances
// to local endpoints. It returns when ctx is done or the relay stream ends.
func (h *Hub) Run(ctx context.Context) error {
	ch, err := h.relay.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if env == nil || env.Update == nil || env.Origin == h.instanceID {
				h.metrics.Relay("skipped")
				continue
			}
			h.metrics.Relay("received")
			h.deliverLocal(env.Update.SessionID, env.Update, env.Except, "relay")
		}
	}
}

// Shutdown closes every endpoint with 1001 and refuses further attaches
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.do(func(st *roomState) {
			for ep := range st.endpoints {
				if err := ep.Close(cnst.CloseGoingAway, "server shutdown"); err != nil {
					h.logger.Debug("failed to close endpoint", zap.String(cnst.AttrEndpointID, ep.ID()), zap.Error(err))
				}
				delete(st.endpoints, ep)
				h.metrics.EndpointDetached()
			}
			h.release(r)
			st.released = true
		})
	}
	h.logger.Info("hub shut down", zap.Int("sessions", len(rooms)))
	return nil
}

func (h *Hub) deliverLocal(sessionID string, update *protocol.SessionUpdate, except, origin string) int {
	r := h.lookup(sessionID)
	if r == nil {
		h.metrics.Broadcast(string(update.Type), origin, 0, time.Now())
		return 0
	}
	delivered := 0
	r.do(func(st *roomState) {
		delivered = h.deliver(st, sessionID, update, except, origin)
	})
	return delivered
}

// deliver runs on the room goroutine
func (h *Hub) deliver(st *roomState, sessionID string, update *protocol.SessionUpdate, except, origin string) int {
	start := time.Now()
	delivered := 0
	for ep := range st.endpoints {
		if except != "" && ep.ID() == except {
			continue
		}
		switch err := ep.Send(update); {
		case err == nil:
			delivered++
		case errors.Is(err, cnst.ErrEndpointClosed):
			// mid-teardown, its Detach is on the way
		case errors.Is(err, cnst.ErrSendQueueFull):
			h.metrics.SendDropped("queue_full")
			h.logger.Warn("dropping update for slow endpoint",
				zap.String(cnst.AttrSessionID, sessionID),
				zap.String(cnst.AttrEndpointID, ep.ID()),
				zap.String(cnst.AttrUpdateType, string(update.Type)))
		default:
			h.metrics.SendDropped("error")
			h.logger.Warn("failed to send update",
				zap.String(cnst.AttrSessionID, sessionID),
				zap.String(cnst.AttrEndpointID, ep.ID()),
				zap.Error(err))
		}
	}
	h.metrics.Broadcast(string(update.Type), origin, delivered, start)
	return delivered
}

// persist records the count on the session; failures only get logged
func (h *Hub) persist(sessionID string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.store.SetParticipants(ctx, sessionID, count); err != nil {
		h.logger.Warn("failed to persist participant count",
			zap.String(cnst.AttrSessionID, sessionID),
			zap.Int("participants", count),
			zap.Error(err))
	}
}

func (h *Hub) lookup(sessionID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[sessionID]
}

func (h *Hub) acquire(sessionID string) (*room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, cnst.ErrHubShutdown
	}
	r, ok := h.rooms[sessionID]
	if !ok {
		r = newRoom(sessionID)
		h.rooms[sessionID] = r
		h.metrics.SessionOpened()
	}
	return r, nil
}

// release drops r from the map; called on r's own goroutine
func (h *Hub) release(r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
		h.metrics.SessionReleased()
	}
}
