package engine

import (
	"context"

	"github.com/devnovikov/algoroom/internal/protocol"
)

// SessionAPI is the session REST surface the engine syncs through
type SessionAPI interface {
	GetSession(ctx context.Context, id string) (*protocol.Session, error)
	UpdateCode(ctx context.Context, id, code string, lang protocol.Language) (*protocol.Session, error)
	ReportExecution(ctx context.Context, id string, result protocol.ExecutionResult) error
}

// Transport delivers the session's broadcast updates
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	Updates() <-chan *protocol.SessionUpdate
}

// Executor runs code in a sandbox. Program failures are reported in the
// result; a returned error means the sandbox itself could not run.
type Executor interface {
	Execute(ctx context.Context, code string, lang protocol.Language) (protocol.ExecutionResult, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, code string, lang protocol.Language) (protocol.ExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, code string, lang protocol.Language) (protocol.ExecutionResult, error) {
	return f(ctx, code, lang)
}
