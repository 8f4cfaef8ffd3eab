package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager drains the HTTP server and tears down registered
// resources when a termination signal arrives. Cleanup runs in reverse
// registration order, so resources registered later (which typically depend
// on earlier ones) go down first.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	steps []shutdownStep
}

type shutdownStep struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a shutdown manager for the given server
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// RegisterShutdownFunc registers a cleanup step
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.RegisterNamed(fmt.Sprintf("step-%d", len(sm.steps)+1), fn)
}

// RegisterNamed registers a cleanup step under a name used in shutdown logs
func (sm *ShutdownManager) RegisterNamed(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.steps = append(sm.steps, shutdownStep{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, drains the HTTP server,
// then runs every registered step. All steps run even when earlier ones
// fail; the combined error is returned.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	var errs []error
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown failed")
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	sm.mu.Lock()
	steps := make([]shutdownStep, len(sm.steps))
	copy(steps, sm.steps)
	sm.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.fn(ctx); err != nil {
			sm.logger.WithError(err).Errorf("Shutdown step %s failed", step.name)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached")
			errs = append(errs, ctx.Err())
			break
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Info("Graceful shutdown complete")
	return nil
}
