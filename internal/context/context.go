// Package context defines typed context keys for values the middleware
// layer injects into request contexts.
package context

import "context"

// contextKey is a private type to avoid collisions with other packages
type contextKey string

const (
	// SubjectKey is the context key for the authenticated principal
	SubjectKey contextKey = "subject"
)

// ExtractSubject extracts the authenticated subject from the context
func ExtractSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectKey).(string)
	return subject, ok
}

// WithSubject returns a context carrying the authenticated subject
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}
