package settings

import (
	"context"
)

type contextKey string

const settingsContextKey contextKey = "settings"

// IntoContext stores the run settings in ctx.
func IntoContext(ctx context.Context, s *Run) context.Context {
	return context.WithValue(ctx, settingsContextKey, s)
}

// FromContext returns the run settings stored in ctx, if any.
func FromContext(ctx context.Context) (*Run, bool) {
	s, ok := ctx.Value(settingsContextKey).(*Run)
	return s, ok
}
