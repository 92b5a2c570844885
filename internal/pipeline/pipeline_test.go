package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/pipeline"
	"dubflow/internal/services"
	"dubflow/internal/steps"
	"dubflow/internal/task"
	"dubflow/internal/testsupport"
)

type stubHandler struct {
	step   task.Step
	err    error
	panics bool
	calls  atomic.Int32
}

func (h *stubHandler) Step() task.Step { return h.step }

func (h *stubHandler) Run(ctx context.Context, t *task.Task) (steps.Result, error) {
	h.calls.Add(1)
	if h.panics {
		panic("handler exploded")
	}
	if h.err != nil {
		return steps.Result{}, h.err
	}
	return steps.Result{ArtifactKey: fmt.Sprintf("acme/shorts/%s/%s", t.ID, h.step)}, nil
}

type harness struct {
	cfg      *config.Config
	store    *task.Store
	runner   *pipeline.Runner
	handlers map[task.Step]*stubHandler
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	store := testsupport.MustOpenStore(t, cfg)

	handlers := make(map[task.Step]*stubHandler)
	ordered := make([]steps.Handler, 0, len(task.Steps()))
	for _, step := range task.Steps() {
		h := &stubHandler{step: step}
		handlers[step] = h
		ordered = append(ordered, h)
	}
	runner := pipeline.NewRunner(cfg, store, nil, ordered...)
	return &harness{cfg: cfg, store: store, runner: runner, handlers: handlers}
}

func (h *harness) reload(t *testing.T, id string) *task.Task {
	t.Helper()
	got, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatalf("task %s missing", id)
	}
	return got
}

func TestRunnerCompletesAllSteps(t *testing.T) {
	h := newHarness(t, nil)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := h.reload(t, tk.ID)
	if got.Status != task.StatusReady {
		t.Fatalf("status = %s", got.Status)
	}
	if got.LastStep != task.StepPublish {
		t.Fatalf("last step = %s", got.LastStep)
	}
	for _, step := range task.Steps() {
		rec := got.StepRecordFor(step)
		if rec.State != task.StepStateDone || rec.Key == "" {
			t.Fatalf("step %s record = %+v", step, rec)
		}
	}
}

func TestRunnerHaltsOnFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.handlers[task.StepSubtitles].err = services.Wrap(services.ErrProvider, "subtitles", "transcribe", "whisper exited 1", nil)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err == nil {
		t.Fatalf("Run should fail")
	}

	got := h.reload(t, tk.ID)
	if got.Status != task.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ErrorReason != "provider_error" {
		t.Fatalf("error reason = %q", got.ErrorReason)
	}
	if got.LastStep != task.StepSubtitles {
		t.Fatalf("last step = %s", got.LastStep)
	}
	if got.Subtitles.State != task.StepStateFailed {
		t.Fatalf("subtitles record = %+v", got.Subtitles)
	}
	if h.handlers[task.StepDub].calls.Load() != 0 {
		t.Fatalf("dub ran after subtitles failed")
	}
}

func TestRunnerSkipsStepsWithArtifacts(t *testing.T) {
	h := newHarness(t, nil)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	tk = h.reload(t, tk.ID)
	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	for _, step := range task.Steps() {
		if calls := h.handlers[step].calls.Load(); calls != 1 {
			t.Fatalf("step %s executed %d times, want 1", step, calls)
		}
	}
	got := h.reload(t, tk.ID)
	if got.Status != task.StatusReady {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Parse.State != task.StepStateSkipped {
		t.Fatalf("parse record after rerun = %+v", got.Parse)
	}
}

func TestRunnerForceReexecutes(t *testing.T) {
	h := newHarness(t, nil)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	tk = h.reload(t, tk.ID)
	if err := h.runner.Run(context.Background(), tk, pipeline.Options{Force: true}); err != nil {
		t.Fatalf("forced Run: %v", err)
	}

	for _, step := range task.Steps() {
		if calls := h.handlers[step].calls.Load(); calls != 2 {
			t.Fatalf("step %s executed %d times, want 2", step, calls)
		}
	}
}

func TestRunnerHaltsOnDisabledStep(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStepDisabled("dub"))
	h := newHarness(t, cfg)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err == nil {
		t.Fatalf("Run should fail on disabled step")
	}

	got := h.reload(t, tk.ID)
	if got.Status != task.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ErrorReason != "tool_disabled" {
		t.Fatalf("error reason = %q", got.ErrorReason)
	}
	if got.ErrorMessage != "tool disabled: dub" {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
	if got.LastStep != task.StepDub {
		t.Fatalf("last step = %s", got.LastStep)
	}
	if h.handlers[task.StepPack].calls.Load() != 0 {
		t.Fatalf("pack ran after disabled dub")
	}
}

func TestRunnerSkipDubConfiguration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Steps.SkipDub = true
	h := newHarness(t, cfg)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	if err := h.runner.Run(context.Background(), tk, pipeline.Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := h.reload(t, tk.ID)
	if got.Status != task.StatusReady {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Dub.State != task.StepStateSkipped {
		t.Fatalf("dub record = %+v", got.Dub)
	}
	if h.handlers[task.StepDub].calls.Load() != 0 {
		t.Fatalf("dub executed despite skip_dub")
	}
	if h.handlers[task.StepPack].calls.Load() != 1 {
		t.Fatalf("pack did not run")
	}
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.handlers[task.StepPack].panics = true
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/abc")

	err := h.runner.Run(context.Background(), tk, pipeline.Options{})
	if err == nil {
		t.Fatalf("Run should surface the panic as an error")
	}
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("err = %v, want fatal", err)
	}

	got := h.reload(t, tk.ID)
	if got.ErrorReason != "pipeline_crash" {
		t.Fatalf("error reason = %q", got.ErrorReason)
	}
	if got.Pack.State != task.StepStateFailed {
		t.Fatalf("pack record = %+v", got.Pack)
	}
}

func TestManagerProcessesPendingTasks(t *testing.T) {
	h := newHarness(t, nil)
	first := testsupport.NewTask(t, h.store, "https://v.douyin.com/first")
	second := testsupport.NewTask(t, h.store, "https://v.douyin.com/second")

	mgr := pipeline.NewManager(h.cfg, h.store, h.runner, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	waitForStatus(t, h, first.ID, task.StatusReady)
	waitForStatus(t, h, second.ID, task.StatusReady)
}

func TestManagerResetsStuckTasksOnStart(t *testing.T) {
	h := newHarness(t, nil)
	tk := testsupport.NewTask(t, h.store, "https://v.douyin.com/stuck")
	tk.Status = task.StatusProcessing
	if err := h.store.Update(context.Background(), tk); err != nil {
		t.Fatalf("Update: %v", err)
	}

	mgr := pipeline.NewManager(h.cfg, h.store, h.runner, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	waitForStatus(t, h, tk.ID, task.StatusReady)
}

func waitForStatus(t *testing.T, h *harness, id string, want task.Status) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		got := h.reload(t, id)
		if got.Status == want {
			return
		}
		if got.Status == task.StatusError {
			t.Fatalf("task %s errored: %s %s", id, got.ErrorReason, got.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", id, want)
}
