package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/logger"
)

// Local delivers requests to a Handler running in the same process.
type Local struct {
	log     *slog.Logger
	handler Handler
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocal creates an in-process channel. Each request is handled with the given timeout.
func NewLocal(log *slog.Logger, handler Handler, timeout time.Duration) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		log:     log,
		handler: handler,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (l *Local) Send(req models.AuthRequest, reply func(models.AuthResponse)) error {
	if !req.Action.Valid() {
		return ErrInvalidAction
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
		defer cancel()

		resp := l.handler.Handle(ctx, req)
		l.log.Debug("local request handled", logger.StringAttr("action", string(req.Action)))
		reply(resp)
	}()

	return nil
}

// Close rejects new sends and waits for in-flight requests to finish.
func (l *Local) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	return nil
}
