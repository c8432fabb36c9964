package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Handlers enrich the context once, and every log statement below
// them carries the conversation/session identifiers without repeating them.
type LogFields struct {
	ConversationID *string // chat conversation the activity belongs to
	ActivityID     *string // platform activity id (dedupe key)
	SessionID      *string // stand-up session id, once one is active
	UserID         *string // stable identity of the sender
	Command        *string // routed command word, if any
	Component      string  // component name (e.g. "cadence.service.standup")
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge, newer non-nil/non-empty values winning.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context, empty if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ConversationID != nil {
		result.ConversationID = next.ConversationID
	}
	if next.ActivityID != nil {
		result.ActivityID = next.ActivityID
	}
	if next.SessionID != nil {
		result.SessionID = next.SessionID
	}
	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.Command != nil {
		result.Command = next.Command
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for inline LogFields.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful when logging free-form answer text.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
