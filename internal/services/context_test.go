package services_test

import (
	"context"
	"testing"

	"summify/internal/services"
)

func TestScopeLayersFields(t *testing.T) {
	ctx := services.WithScope(context.Background(), services.Scope{FileID: "0123456789abcdef0123456789abcdef", JobID: "job-7"})
	ctx = services.WithScope(ctx, services.Scope{Step: "fix"})

	got := services.ScopeOf(ctx)
	want := services.Scope{FileID: "0123456789abcdef0123456789abcdef", JobID: "job-7", Step: "fix"}
	if got != want {
		t.Fatalf("unexpected scope %+v", got)
	}

	inner := services.WithScope(ctx, services.Scope{Step: "summarize"})
	if services.ScopeOf(inner).Step != "summarize" || services.ScopeOf(ctx).Step != "fix" {
		t.Fatal("expected inner scope to shadow the step without touching the parent")
	}
}

func TestEmptyScopeKeepsContext(t *testing.T) {
	ctx := context.Background()
	if services.WithScope(ctx, services.Scope{}) != ctx {
		t.Fatal("expected the same context back")
	}
	if services.ScopeOf(ctx) != (services.Scope{}) {
		t.Fatal("expected zero scope on a bare context")
	}
}
