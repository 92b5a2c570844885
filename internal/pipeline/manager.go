package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/task"
)

// Manager polls the store for pending tasks and runs each through the
// pipeline, bounded by the configured concurrency.
type Manager struct {
	cfg          *config.Config
	store        *task.Store
	runner       *Runner
	logger       *slog.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a manager around the runner.
func NewManager(cfg *config.Config, store *task.Store, runner *Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Pipeline.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		logger:       logger,
		pollInterval: interval,
	}
}

// Start launches background processing. Tasks left in processing by a
// previous run are reset to pending before polling begins.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}

	reset, err := m.store.ResetStuck(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		m.logger.InfoContext(ctx, "reset stuck tasks to pending", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.poll(runCtx)
	return nil
}

// Stop halts polling and waits for in-flight tasks to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) poll(ctx context.Context) {
	defer m.wg.Done()

	slots := m.cfg.Pipeline.MaxConcurrentTasks
	if slots <= 0 {
		slots = 1
	}
	sem := make(chan struct{}, slots)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.ErrorContext(ctx, "claim next task failed", logging.Error(err))
			m.waitOrShutdown(ctx)
			continue
		}
		if t == nil {
			m.waitOrShutdown(ctx)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		m.wg.Add(1)
		go func(claimed *task.Task) {
			defer m.wg.Done()
			defer func() { <-sem }()

			started := time.Now()
			if err := m.runner.Run(ctx, claimed, Options{}); err != nil {
				m.logger.ErrorContext(ctx, "task failed",
					logging.String(logging.FieldTaskID, claimed.ID),
					logging.Error(err),
					logging.Duration("task_duration", time.Since(started)))
				return
			}
			m.logger.InfoContext(ctx, "task completed",
				logging.String(logging.FieldTaskID, claimed.ID),
				logging.Duration("task_duration", time.Since(started)))
		}(t)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
