package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/protocol"
)

// WSEndpoint is an Endpoint backed by a server-side websocket connection.
// All frame writes happen on one writer goroutine fed by a bounded queue.
type WSEndpoint struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger
	cfg    config.HubConfig

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

var _ Endpoint = (*WSEndpoint)(nil)

// NewWSEndpoint wraps an upgraded connection. Run must be called to pump it.
func NewWSEndpoint(id string, conn *websocket.Conn, cfg config.HubConfig, logger *zap.Logger) *WSEndpoint {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &WSEndpoint{
		id:     id,
		conn:   conn,
		logger: logger.With(zap.String(cnst.AttrEndpointID, id)),
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendQueueSize),
		done:   make(chan struct{}),
	}
}

func (e *WSEndpoint) ID() string {
	return e.id
}

// Send queues an update without blocking
func (e *WSEndpoint) Send(update *protocol.SessionUpdate) error {
	data, err := protocol.Encode(update)
	if err != nil {
		return err
	}

	// done wins over a free queue slot
	select {
	case <-e.done:
		return cnst.ErrEndpointClosed
	default:
		select {
		case e.send <- data:
			return nil
		default:
			return cnst.ErrSendQueueFull
		}
	}
}

// Close asks the writer to send a close frame with code and tear the
// connection down. It is idempotent; the first code wins.
func (e *WSEndpoint) Close(code int, reason string) error {
	e.closeOnce.Do(func() {
		e.closeCode = code
		e.closeReason = reason
		close(e.done)
	})
	return nil
}

// Done is closed once Close has been called
func (e *WSEndpoint) Done() <-chan struct{} {
	return e.done
}

// Run pumps the connection until either side closes it. Inbound frames are
// read only to notice closure and answer pings.
func (e *WSEndpoint) Run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		e.writeLoop()
	}()

	e.readLoop()
	_ = e.Close(cnst.CloseNormal, "")
	<-writerDone
}

func (e *WSEndpoint) readLoop() {
	pongWait := 2 * e.cfg.PingInterval
	if e.cfg.ReadLimit > 0 {
		e.conn.SetReadLimit(e.cfg.ReadLimit)
	}
	_ = e.conn.SetReadDeadline(time.Now().Add(pongWait))
	e.conn.SetPongHandler(func(string) error {
		return e.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := e.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				e.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
	}
}

func (e *WSEndpoint) writeLoop() {
	ticker := time.NewTicker(e.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = e.conn.Close()
	}()

	for {
		select {
		case data := <-e.send:
			_ = e.conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
			if err := e.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				e.logger.Debug("websocket write failed", zap.Error(err))
				_ = e.Close(cnst.CloseInternalError, "write failed")
				return
			}
		case <-ticker.C:
			if err := e.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(e.cfg.WriteTimeout)); err != nil {
				_ = e.Close(cnst.CloseInternalError, "ping failed")
				return
			}
		case <-e.done:
			msg := websocket.FormatCloseMessage(e.closeCode, e.closeReason)
			err := e.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(e.cfg.WriteTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				e.logger.Debug("failed to send close frame", zap.Error(err))
			}
			return
		}
	}
}
