package services_test

import (
	"context"
	"testing"

	"dubflow/internal/services"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	if _, ok := services.TaskIDFromContext(ctx); ok {
		t.Fatal("expected no task id on empty context")
	}

	ctx = services.WithTaskID(ctx, "abc123")
	ctx = services.WithStep(ctx, "subtitles")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "abc123" {
		t.Fatalf("task id = %q, %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "subtitles" {
		t.Fatalf("step = %q, %v", step, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}

func TestContextIgnoresEmptyValues(t *testing.T) {
	ctx := services.WithStep(context.Background(), "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected empty step to be ignored")
	}
}
