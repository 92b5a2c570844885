package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dubflow/internal/task"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage localization tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newTaskAddCommand(ctx))
	cmd.AddCommand(newTaskListCommand(ctx))
	cmd.AddCommand(newTaskShowCommand(ctx))
	cmd.AddCommand(newTaskRunCommand(ctx))
	cmd.AddCommand(newTaskRetryCommand(ctx))
	return cmd
}

func newTaskAddCommand(ctx *commandContext) *cobra.Command {
	var title, platform, contentLang, targetLang, subtitlesMode, dubMode string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Enqueue a short-video link for localization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			created, err := store.Create(cmd.Context(), task.NewTaskRequest{
				SourceURL:   strings.TrimSpace(args[0]),
				Title:       title,
				Platform:    platform,
				Tenant:      cfg.Scope.Tenant,
				Project:     cfg.Scope.Project,
				ContentLang: contentLang,
				TargetLang:  targetLang,
				PipelineConfig: task.PipelineConfig{
					SubtitlesMode: subtitlesMode,
					DubMode:       dubMode,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s queued (%s)\n", created.ID, created.SourceURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Override the video title")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform hint (douyin, tiktok, ...)")
	cmd.Flags().StringVar(&contentLang, "content-lang", "", "Spoken language of the source video")
	cmd.Flags().StringVar(&targetLang, "target-lang", "", "Target language override")
	cmd.Flags().StringVar(&subtitlesMode, "subtitles-mode", "", "Subtitles mode (whisper-only or whisper+gemini)")
	cmd.Flags().StringVar(&dubMode, "dub-mode", "", "Dub mode (edge, lovo, or auto-fallback)")
	return cmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			statuses := make([]task.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := task.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			tasks, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, []string{
					shortID(t.ID),
					statusLabel(string(t.Status)),
					string(t.LastStep),
					t.Platform,
					t.Title,
					t.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					{header: "ID"},
					{header: "Status"},
					{header: "Step"},
					{header: "Platform"},
					{header: "Title", widthMax: 40},
					{header: "Created"},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (pending, processing, ready, error)")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its per-step records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := findTask(cmd, store, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", t.ID)
			fmt.Fprintf(out, "Source:      %s\n", t.SourceURL)
			fmt.Fprintf(out, "Title:       %s\n", orDash(t.Title))
			fmt.Fprintf(out, "Platform:    %s\n", orDash(t.Platform))
			fmt.Fprintf(out, "Scope:       %s/%s\n", t.Tenant, t.Project)
			fmt.Fprintf(out, "Status:      %s\n", statusLabel(string(t.Status)))
			fmt.Fprintf(out, "Last step:   %s\n", orDash(string(t.LastStep)))
			if t.DurationSeconds > 0 {
				fmt.Fprintf(out, "Duration:    %ss\n", strconv.FormatFloat(t.DurationSeconds, 'f', 1, 64))
			}
			if t.Status == task.StatusError {
				fmt.Fprintf(out, "Error:       [%s] %s\n", t.ErrorReason, t.ErrorMessage)
			}
			if t.PublishURL != "" {
				fmt.Fprintf(out, "Published:   %s (%s)\n", t.PublishURL, orDash(t.PublishProvider))
			}
			if t.PackHash != "" {
				fmt.Fprintf(out, "Pack hash:   %s\n", t.PackHash)
			}

			rows := make([][]string, 0, len(task.Steps())+1)
			for _, step := range task.Steps() {
				rec := t.StepRecordFor(step)
				rows = append(rows, stepRow(string(step), *rec))
			}
			rows = append(rows, stepRow("scenes", t.Scenes))
			fmt.Fprintln(out, renderTable(
				[]column{
					{header: "Step"},
					{header: "State"},
					{header: "Artifact"},
					{header: "Error", widthMax: 60},
				},
				rows,
			))
			return nil
		},
	}
}

func newTaskRunCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run one task through the pipeline in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := findTask(cmd, store, args[0])
			if err != nil {
				return err
			}

			runner, err := buildRunner(cfg, store)
			if err != nil {
				return err
			}
			if err := runner.Run(cmd.Context(), t, runOptions(force)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is %s\n", t.ID, t.Status)
			if t.PublishURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Published: %s\n", t.PublishURL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-execute steps that already produced artifacts")
	return cmd
}

func newTaskRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset an errored task to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := findTask(cmd, store, args[0])
			if err != nil {
				return err
			}
			if err := store.RetryErrored(cmd.Context(), t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s reset to pending\n", t.ID)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts per lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Pending", strconv.Itoa(summary.Pending)},
				{"Processing", strconv.Itoa(summary.Processing)},
				{"Ready", strconv.Itoa(summary.Ready)},
				{"Error", strconv.Itoa(summary.Errored)},
				{"Total", strconv.Itoa(summary.Total)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					{header: "Status"},
					{header: "Count", numeric: true},
				},
				rows,
			))
			return nil
		},
	}
}

// findTask resolves a full or shortened task id. A short prefix matches when
// it is unambiguous.
func findTask(cmd *cobra.Command, store *task.Store, raw string) (*task.Task, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return nil, fmt.Errorf("task id is required")
	}

	t, err := store.GetByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	all, err := store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	var match *task.Task
	for _, candidate := range all {
		if strings.HasPrefix(candidate.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("task id %q is ambiguous", id)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("task %q not found", id)
	}
	return match, nil
}

func stepRow(name string, rec task.StepRecord) []string {
	state := string(rec.State)
	if state == "" {
		state = "-"
	}
	return []string{name, state, orDash(rec.Key), orDash(rec.ErrorMsg)}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
