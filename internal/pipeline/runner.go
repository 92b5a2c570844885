// Package pipeline drives tasks through their steps in order and persists
// the outcome of every step, so a crashed or restarted daemon resumes from
// the last recorded step instead of starting over.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/steps"
	"dubflow/internal/task"
)

// reasonToolDisabled marks tasks halted by an administratively disabled step.
const reasonToolDisabled = "tool_disabled"

// Options adjusts a single pipeline run.
type Options struct {
	// Force re-executes steps that already recorded an artifact key.
	Force bool
}

// Runner executes one task end to end. A per-task lock file prevents the
// daemon and CLI from processing the same task concurrently.
type Runner struct {
	cfg      *config.Config
	store    *task.Store
	handlers map[task.Step]steps.Handler
	lockDir  string
	logger   *slog.Logger
}

// NewRunner constructs a runner from the configured step handlers.
func NewRunner(cfg *config.Config, store *task.Store, logger *slog.Logger, handlers ...steps.Handler) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	byStep := make(map[task.Step]steps.Handler, len(handlers))
	for _, h := range handlers {
		if h != nil {
			byStep[h.Step()] = h
		}
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		handlers: byStep,
		lockDir:  filepath.Join(cfg.Paths.WorkspaceDir, "locks"),
		logger:   logger,
	}
}

// Run processes every remaining step of the task. The task snapshot is
// persisted after each step so progress survives a crash.
func (r *Runner) Run(ctx context.Context, t *task.Task, opts Options) error {
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(r.lockDir, t.ID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire task lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("task %s is already being processed", t.ID)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	logger := r.logger.With(logging.String(logging.FieldTaskID, t.ID))

	t.Status = task.StatusProcessing
	t.ClearError()
	if err := r.store.Update(ctx, t); err != nil {
		return fmt.Errorf("persist run start: %w", err)
	}

	for _, step := range task.Steps() {
		rec := t.StepRecordFor(step)
		if rec == nil {
			continue
		}
		stepLogger := logger.With(logging.String(logging.FieldStep, string(step)))

		if !r.cfg.StepEnabled(string(step)) {
			t.Status = task.StatusError
			t.LastStep = step
			t.ErrorReason = reasonToolDisabled
			t.ErrorMessage = fmt.Sprintf("tool disabled: %s", step)
			stepLogger.WarnContext(ctx, "step disabled, halting task")
			if err := r.store.Update(ctx, t); err != nil {
				return fmt.Errorf("persist disabled step: %w", err)
			}
			return fmt.Errorf("tool disabled: %s", step)
		}

		if step == task.StepDub && r.cfg.Steps.SkipDub {
			rec.State = task.StepStateSkipped
			rec.ErrorMsg = ""
			t.AdvanceLastStep(step)
			stepLogger.InfoContext(ctx, "step skipped by configuration")
			if err := r.store.Update(ctx, t); err != nil {
				return fmt.Errorf("persist skipped step: %w", err)
			}
			continue
		}

		if rec.Key != "" && !opts.Force {
			rec.State = task.StepStateSkipped
			t.AdvanceLastStep(step)
			stepLogger.InfoContext(ctx, "step already has artifact, skipping",
				logging.String("artifact_key", rec.Key))
			if err := r.store.Update(ctx, t); err != nil {
				return fmt.Errorf("persist skipped step: %w", err)
			}
			continue
		}
		if opts.Force {
			*rec = task.StepRecord{}
		}

		handler, ok := r.handlers[step]
		if !ok {
			return r.failStep(ctx, t, rec, step,
				services.Wrap(services.ErrConfiguration, string(step), "dispatch", "no handler registered", nil))
		}

		stepCtx := services.WithRequestID(
			services.WithStep(services.WithTaskID(ctx, t.ID), string(step)),
			uuid.NewString())
		started := time.Now()
		stepLogger.InfoContext(stepCtx, "step started")
		res, runErr := r.runHandler(stepCtx, handler, t)
		if runErr != nil {
			stepLogger.ErrorContext(stepCtx, "step failed",
				logging.Error(runErr),
				logging.Duration("step_duration", time.Since(started)))
			return r.failStep(ctx, t, rec, step, runErr)
		}

		rec.State = task.StepStateDone
		rec.Key = res.ArtifactKey
		rec.ErrorMsg = ""
		t.AdvanceLastStep(step)
		attrs := []logging.Attr{
			logging.String("artifact_key", res.ArtifactKey),
			logging.Duration("step_duration", time.Since(started)),
		}
		for k, v := range res.Metadata {
			attrs = append(attrs, logging.String(k, v))
		}
		stepLogger.InfoContext(stepCtx, "step completed", logging.Args(attrs...)...)
		if err := r.store.Update(ctx, t); err != nil {
			return fmt.Errorf("persist step result: %w", err)
		}
	}

	t.Status = task.StatusReady
	t.ClearError()
	if err := r.store.Update(ctx, t); err != nil {
		return fmt.Errorf("persist completion: %w", err)
	}
	logger.InfoContext(ctx, "task ready")
	return nil
}

// runHandler converts a handler panic into a typed fatal error so a buggy
// step cannot take the daemon down.
func (r *Runner) runHandler(ctx context.Context, handler steps.Handler, t *task.Task) (res steps.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrFatal, string(handler.Step()), "execute",
				fmt.Sprintf("panic: %v", rec), nil)
		}
	}()
	return handler.Run(ctx, t)
}

func (r *Runner) failStep(ctx context.Context, t *task.Task, rec *task.StepRecord, step task.Step, stepErr error) error {
	rec.State = task.StepStateFailed
	rec.ErrorMsg = services.Detail(stepErr)
	t.Status = task.StatusError
	t.LastStep = step
	t.ErrorReason = services.Reason(stepErr)
	t.ErrorMessage = services.Detail(stepErr)
	if err := r.store.Update(ctx, t); err != nil {
		return fmt.Errorf("persist step failure: %w (step error: %v)", err, stepErr)
	}
	return stepErr
}
