package http

import "context"

type contextKey string

const (
	conferenceIDContextKey contextKey = "conference_id"
	entryIDContextKey      contextKey = "entry_id"
)

// ContextWithConferenceID injects the conference identifier resolved from the request path.
func ContextWithConferenceID(ctx context.Context, conferenceID string) context.Context {
	return context.WithValue(ctx, conferenceIDContextKey, conferenceID)
}

// ConferenceIDFromContext extracts a conference identifier previously associated with the context.
func ConferenceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(conferenceIDContextKey).(string)
	return id, ok
}

// ContextWithEntryID injects the schedule entry identifier resolved from the request path.
func ContextWithEntryID(ctx context.Context, entryID string) context.Context {
	return context.WithValue(ctx, entryIDContextKey, entryID)
}

// EntryIDFromContext extracts a schedule entry identifier previously associated with the context.
func EntryIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(entryIDContextKey).(string)
	return id, ok
}
