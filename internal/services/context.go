package services

import "context"

type scopeKey struct{}

// Scope names the unit of work a context is serving. Empty fields are unset.
type Scope struct {
	FileID    string
	JobID     string
	Step      string
	RequestID string
}

// ScopeOf returns the scope attached to ctx, or the zero Scope.
func ScopeOf(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}

// WithScope layers the non-empty fields of s over the scope already on ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	merged := ScopeOf(ctx)
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&merged.FileID, s.FileID)
	set(&merged.JobID, s.JobID)
	set(&merged.Step, s.Step)
	set(&merged.RequestID, s.RequestID)
	if !changed {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, merged)
}
