package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/protocol"
)

const (
	updateBuffer       = 64
	readLimit          = 1 << 20
	closeDeadline      = time.Second
	defaultReadTimeout = 60 * time.Second
)

// Channel is a managed websocket subscription to one session. It reconnects
// after unintentional closes and delivers decoded updates on Updates.
type Channel struct {
	url      string
	clientID string
	logger   *zap.Logger
	dialer   *websocket.Dialer
	backoff  *Backoff
	// readTimeout is how long a connection may stay silent, pings included
	readTimeout time.Duration
	updates     chan *protocol.SessionUpdate
	sleep    func(ctx context.Context, d time.Duration) bool

	mu          sync.Mutex
	state       State
	running     bool
	intentional bool
	conn        *websocket.Conn
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	watchers    map[chan State]struct{}
}

// NewChannel creates a channel for sessionID on the server at serverURL
// (http or https). Nothing is dialed until Connect.
func NewChannel(serverURL, sessionID, clientID string, cfg config.ReconnectConfig, logger *zap.Logger) (*Channel, error) {
	wsURL, err := SessionURL(serverURL, sessionID, clientID)
	if err != nil {
		return nil, err
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	return &Channel{
		url:      wsURL,
		clientID: clientID,
		logger:   logger.Named("transport").With(zap.String(cnst.AttrSessionID, sessionID)),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		backoff:     NewBackoff(cfg),
		readTimeout: readTimeout,
		updates:     make(chan *protocol.SessionUpdate, updateBuffer),
		sleep:       sleepContext,
		watchers:    make(map[chan State]struct{}),
	}, nil
}

// SessionURL builds the websocket URL of a session from the REST base URL
func SessionURL(serverURL, sessionID, clientID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme", serverURL)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/sessions/" + url.PathEscape(sessionID)
	q := u.Query()
	q.Set("clientId", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ClientID is the endpoint id the server knows this channel by
func (c *Channel) ClientID() string {
	return c.clientID
}

// Updates delivers decoded inbound updates. It is never closed.
func (c *Channel) Updates() <-chan *protocol.SessionUpdate {
	return c.updates
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns why the reconnect loop stopped on its own, if it did
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Connect starts the connection loop. It returns immediately and is a no-op
// while the loop is already running.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.running = true
	c.intentional = false
	c.err = nil
	c.cancel = cancel
	c.done = make(chan struct{})
	c.backoff.Reset()

	go c.run(loopCtx, c.done)
	return nil
}

// Disconnect closes the connection intentionally and waits for the loop to
// stop. No reconnect is scheduled.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.intentional = true
	c.cancel()
	conn, done := c.conn, c.done
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeDeadline))
		_ = conn.Close()
	}
	<-done
}

// Watch streams state changes, starting with the current state. A lagging
// watcher only sees the newest state. The channel closes when ctx is done.
func (c *Channel) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	c.mu.Lock()
	ch <- c.state
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.conn = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)
		close(done)
	}()

	for {
		c.setState(StateConnecting)
		err := c.session(ctx)
		c.setState(StateDisconnected)

		if ctx.Err() != nil || c.isIntentional() {
			return
		}

		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			c.logger.Warn("server rejected the session", zap.Error(err))
			c.fail(fmt.Errorf("%w: %v", cnst.ErrSessionNotFound, err))
			return
		}

		delay, ok := c.backoff.Next()
		if !ok {
			c.logger.Error("giving up reconnecting",
				zap.Int("attempts", c.backoff.Attempts()),
				zap.Error(err))
			c.fail(cnst.ErrMaxReconnectAttemptsExceeded)
			return
		}

		c.logger.Info("connection lost, reconnecting",
			zap.Int("attempt", c.backoff.Attempts()),
			zap.Duration("delay", delay),
			zap.Error(err))
		if !c.sleep(ctx, delay) {
			return
		}
	}
}

// session dials once and reads until the connection ends
func (c *Channel) session(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: dial: %v", cnst.ErrConnectionLost, err)
	}

	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.backoff.Reset()
	c.setState(StateConnected)
	c.logger.Debug("connected")

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	// the server pings periodically, so a silent connection is a dead one
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(closeDeadline))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			return err
		}
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))

		update, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}

		select {
		case c.updates <- update:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) isIntentional() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == s {
		return
	}
	c.state = s
	for ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
