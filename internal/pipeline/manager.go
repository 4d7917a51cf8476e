package pipeline

import (
	"context"
	"errors"
	"sync"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/infra"
)

// Manager owns the batch queue and serializes runs over it: at most one run
// is active at a time, each with a fresh cancellation signal. Handlers talk
// to the Manager, never to the orchestrator directly.
type Manager struct {
	mu      sync.Mutex
	orch    *Orchestrator
	queue   *domain.Queue
	sig     *Signal
	running bool
	lastErr error
	logger  infra.Logger
}

// Status is a point-in-time view of the manager for API consumers.
type Status struct {
	Running   bool   `json:"running"`
	LastError string `json:"last_error,omitempty"`
}

func NewManager(orch *Orchestrator, logger infra.Logger) *Manager {
	return &Manager{
		orch:   orch,
		queue:  domain.NewQueue(),
		logger: logger,
	}
}

// Queue exposes the shared work item queue.
func (m *Manager) Queue() *domain.Queue {
	return m.queue
}

// Running reports whether a run is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status reports whether a run is active and the outcome of the last run.
// User cancellation is not an error and is not reported as one.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Running: m.running}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// Start launches a run in the background. It returns domain.ErrRunActive if
// one is already in flight.
func (m *Manager) Start(ctx context.Context, plan Plan) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return domain.ErrRunActive
	}
	sig := NewSignal()
	m.sig = sig
	m.running = true
	m.lastErr = nil
	m.mu.Unlock()

	go func() {
		err := m.orch.Run(ctx, m.queue, plan, sig)
		switch {
		case err == nil:
		case errors.Is(err, ErrCanceled):
			m.logger.Info().Msg("batch: run canceled by user")
			err = nil
		default:
			m.logger.Error().Err(err).Msg("batch: run aborted")
		}

		m.mu.Lock()
		m.running = false
		m.sig = nil
		m.lastErr = err
		m.mu.Unlock()
	}()
	return nil
}

// Cancel requests cooperative cancellation of the active run. It reports
// whether a run was active to receive the request.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.sig == nil {
		return false
	}
	m.sig.Cancel()
	return true
}
