package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/protocol"
)

var (
	// ErrSessionLoad is returned by Load; the engine cannot be used afterwards
	ErrSessionLoad = errors.New("session load failed")
	// ErrNotLoaded is returned by operations that need a loaded session
	ErrNotLoaded = errors.New("session not loaded")
	// ErrClosed is returned once Close has been called
	ErrClosed = errors.New("engine closed")
	// ErrNoExecutor is returned by Execute when no executor is configured
	ErrNoExecutor = errors.New("no executor configured")
	// ErrNoTransport is returned by Run when no transport is configured
	ErrNoTransport = errors.New("no transport configured")
)

const (
	defaultDebounce = 500 * time.Millisecond
	defaultTimeout  = 10 * time.Second
	errorBuffer     = 16
)

// View is a snapshot of what the local user sees
type View struct {
	Session protocol.Session
	Result  *protocol.ExecutionResult
	// Pending is set while a local edit has not been confirmed by the server
	Pending bool
}

// Engine owns the local projection of one session. Local edits are applied
// optimistically and pushed after a debounce; inbound updates are merged with
// echo suppression and per-language isolation. All state is guarded by mu.
type Engine struct {
	sessionID string
	api       SessionAPI
	transport Transport
	executor  Executor
	logger    *zap.Logger
	debounce  time.Duration
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	loaded     bool
	closed     bool
	view       protocol.Session
	result     *protocol.ExecutionResult
	pending    *string
	lastSynced *string
	cache      map[protocol.Language]string
	timer      *time.Timer
	timerGen   uint64
	nextCode   string
	nextLang   protocol.Language
	// pushSeq numbers pushes in the order their payload was taken
	pushSeq uint64

	// sendMu allows one UpdateCode call in flight
	sendMu    sync.Mutex
	pushes    sync.WaitGroup
	changes   chan struct{}
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures an Engine
type Option func(*Engine)

// WithTransport sets the update stream consumed by Run
func WithTransport(t Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithExecutor sets the sandbox used by Execute
func WithExecutor(x Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// WithDebounce sets the quiet period before an edit is pushed
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithTimeout bounds each load and push call
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine for sessionID. Load must succeed before edits are
// accepted.
func New(sessionID string, api SessionAPI, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		sessionID: sessionID,
		api:       api,
		logger:    zap.NewNop(),
		debounce:  defaultDebounce,
		timeout:   defaultTimeout,
		ctx:       ctx,
		cancel:    cancel,
		cache:     make(map[protocol.Language]string),
		changes:   make(chan struct{}, 1),
		errs:      make(chan error, errorBuffer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("engine").With(zap.String(cnst.AttrSessionID, sessionID))
	return e
}

// SessionID returns the id of the session this engine follows
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Changes receives a signal after every visible state change. Signals
// coalesce; read View for the current state.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

// Errors receives recoverable sync errors from debounced pushes
func (e *Engine) Errors() <-chan error {
	return e.errs
}

// View returns a copy of the visible state
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{Session: e.view, Pending: e.pending != nil}
	if e.result != nil {
		res := *e.result
		v.Result = &res
	}
	return v
}

// Load fetches the session and seeds the visible state. A failure leaves the
// state untouched and is not retried.
func (e *Engine) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sess, err := e.api.GetSession(ctx, e.sessionID)
	if err != nil {
		e.logger.Error("failed to load session", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSessionLoad, syncFailed(err))
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !sess.Language.Valid() {
		sess.Language = protocol.DefaultLanguage
	}
	e.view = *sess
	e.cache[sess.Language] = sess.Code
	synced := sess.Code
	e.lastSynced = &synced
	e.loaded = true
	e.mu.Unlock()

	e.notify()
	return nil
}

// Edit applies a local change optimistically and schedules a debounced push.
// A push already scheduled is replaced, never queued behind.
func (e *Engine) Edit(code string) error {
	e.mu.Lock()
	if err := e.usableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	e.view.Code = code
	p := code
	e.pending = &p
	e.cache[e.view.Language] = code
	e.scheduleLocked(code, e.view.Language)
	e.mu.Unlock()

	e.notify()
	return nil
}

// Apply merges one inbound update and reports whether the visible state
// changed. Updates for other sessions are ignored.
func (e *Engine) Apply(u *protocol.SessionUpdate) bool {
	if u == nil || u.SessionID != e.sessionID {
		return false
	}

	e.mu.Lock()
	changed := e.applyLocked(u)
	e.mu.Unlock()

	if changed {
		e.notify()
	}
	return changed
}

func (e *Engine) applyLocked(u *protocol.SessionUpdate) bool {
	if e.closed {
		return false
	}

	switch u.Type {
	case protocol.UpdateCode:
		code := u.CodeValue()
		if isEcho(code, e.pending, e.lastSynced) {
			e.logger.Debug("suppressed echoed code update")
			return false
		}

		lang := u.Language
		if !lang.Valid() {
			lang = e.view.Language
		}
		e.cache[lang] = code
		if lang != e.view.Language || e.view.Code == code {
			return false
		}
		e.view.Code = code
		return true

	case protocol.UpdateParticipantJoined, protocol.UpdateParticipantLeft:
		n := u.ParticipantCount()
		if e.view.Participants == n {
			return false
		}
		e.view.Participants = n
		return true

	case protocol.UpdateExecutionResult:
		if u.ExecutionResult == nil {
			return false
		}
		res := *u.ExecutionResult
		if e.result != nil && *e.result == res {
			return false
		}
		e.result = &res
		return true
	}
	return false
}

// SwitchLanguage makes lang the active language. The code being left is
// kept in the cache, the target's cached code (or its starter snippet)
// becomes visible, and the pair is pushed immediately.
func (e *Engine) SwitchLanguage(ctx context.Context, lang protocol.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", cnst.ErrInvalidLanguage, lang)
	}

	e.mu.Lock()
	if err := e.usableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if lang == e.view.Language {
		e.mu.Unlock()
		return nil
	}

	e.cache[e.view.Language] = e.view.Code
	code, ok := e.cache[lang]
	if !ok {
		code = protocol.DefaultSnippet(lang)
		e.cache[lang] = code
	}
	e.view.Language = lang
	e.view.Code = code
	e.result = nil
	e.cancelTimerLocked()
	p := code
	e.pending = &p
	seq := e.nextSeqLocked()
	e.pushes.Add(1)
	e.mu.Unlock()

	e.notify()

	defer e.pushes.Done()
	return e.push(ctx, seq, code, lang)
}

// Retry pushes the pending edit right away, if there is one
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	if err := e.usableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.pending == nil {
		e.mu.Unlock()
		return nil
	}
	code, lang := *e.pending, e.view.Language
	e.cancelTimerLocked()
	seq := e.nextSeqLocked()
	e.pushes.Add(1)
	e.mu.Unlock()

	defer e.pushes.Done()
	return e.push(ctx, seq, code, lang)
}

// Execute runs the visible code, shows the result locally and shares it with
// the other participants.
func (e *Engine) Execute(ctx context.Context) (protocol.ExecutionResult, error) {
	if e.executor == nil {
		return protocol.ExecutionResult{}, ErrNoExecutor
	}

	e.mu.Lock()
	if err := e.usableLocked(); err != nil {
		e.mu.Unlock()
		return protocol.ExecutionResult{}, err
	}
	code, lang := e.view.Code, e.view.Language
	e.mu.Unlock()

	start := time.Now()
	res, err := e.executor.Execute(ctx, code, lang)
	if err != nil {
		return protocol.ExecutionResult{}, fmt.Errorf("execute: %w", err)
	}
	if res.ExecutionTime <= 0 {
		res.ExecutionTime = time.Since(start).Milliseconds()
	}

	e.mu.Lock()
	shown := res
	e.result = &shown
	e.mu.Unlock()
	e.notify()

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.api.ReportExecution(rctx, e.sessionID, res); err != nil {
		return res, syncFailed(err)
	}
	return res, nil
}

// Run connects the transport and merges its updates until ctx is done or
// the engine is closed.
func (e *Engine) Run(ctx context.Context) error {
	if e.transport == nil {
		return ErrNoTransport
	}
	select {
	case <-e.done:
		return nil
	default:
	}
	if err := e.transport.Connect(ctx); err != nil {
		return err
	}

	updates := e.transport.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case u := <-updates:
			e.Apply(u)
		}
	}
}

// Close stops the debounce timer, disconnects the transport intentionally
// and waits for in-flight pushes. A scheduled but unfired push is dropped.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.cancelTimerLocked()
		e.mu.Unlock()

		e.cancel()
		if e.transport != nil {
			e.transport.Disconnect()
		}
		e.pushes.Wait()
		close(e.done)
	})
}

func (e *Engine) usableLocked() error {
	if e.closed {
		return ErrClosed
	}
	if !e.loaded {
		return ErrNotLoaded
	}
	return nil
}

// scheduleLocked replaces the single debounce slot with a push of code
func (e *Engine) scheduleLocked(code string, lang protocol.Language) {
	e.cancelTimerLocked()
	e.nextCode, e.nextLang = code, lang
	gen := e.timerGen
	e.timer = time.AfterFunc(e.debounce, func() { e.fire(gen) })
}

func (e *Engine) cancelTimerLocked() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	code, lang := e.nextCode, e.nextLang
	e.timer = nil
	seq := e.nextSeqLocked()
	e.pushes.Add(1)
	e.mu.Unlock()

	defer e.pushes.Done()
	if err := e.push(e.ctx, seq, code, lang); err != nil {
		e.report(err)
	}
}

func (e *Engine) nextSeqLocked() uint64 {
	e.pushSeq++
	return e.pushSeq
}

// push sends code to the server. Pushes run one at a time; a push whose
// payload was superseded while it waited for its turn is skipped, so the
// server never receives an older document after a newer one. On success the
// code becomes last-synced and the pending marker is cleared if nothing newer
// was typed meanwhile. Close cancels a push in flight.
func (e *Engine) push(ctx context.Context, seq uint64, code string, lang protocol.Language) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mu.Lock()
	closed, superseded := e.closed, seq < e.pushSeq
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if superseded {
		e.logger.Debug("skipped superseded push", zap.Uint64("seq", seq))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	if _, err := e.api.UpdateCode(ctx, e.sessionID, code, lang); err != nil {
		e.logger.Warn("failed to push code", zap.String("language", lang.String()), zap.Error(err))
		return syncFailed(err)
	}

	e.mu.Lock()
	synced := code
	e.lastSynced = &synced
	cleared := e.pending != nil && *e.pending == code
	if cleared {
		e.pending = nil
	}
	e.mu.Unlock()

	if cleared {
		e.notify()
	}
	return nil
}

func (e *Engine) report(err error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}

	select {
	case e.errs <- err:
	default:
		e.logger.Warn("sync error dropped, nobody is reading errors", zap.Error(err))
	}
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

func isEcho(code string, pending, lastSynced *string) bool {
	return (pending != nil && *pending == code) || (lastSynced != nil && *lastSynced == code)
}

// syncFailed makes sure err matches cnst.ErrSyncFailed while keeping its chain
func syncFailed(err error) error {
	if errors.Is(err, cnst.ErrSyncFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", cnst.ErrSyncFailed, err)
}
