package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventSignup            ActivityEventType = "auth.signup"
	ActivityEventRefreshRotated    ActivityEventType = "auth.refresh.rotated"
	ActivityEventRefreshRevoked    ActivityEventType = "auth.refresh.revoked"
	ActivityEventOwnerProcessed    ActivityEventType = "account.owner.processed"
	ActivityEventPostProcessed     ActivityEventType = "post.processed"
	ActivityEventRequestOpened     ActivityEventType = "request.opened"
	ActivityEventRequestResponded  ActivityEventType = "request.responded"
	ActivityEventRequestReturned   ActivityEventType = "request.returned"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	SubjectID  string
	FromStatus string
	ToStatus   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// actorFromClaims attributes an event to the authenticated principal.
func actorFromClaims(claims AuthClaims) ActorRef {
	if claims == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: claims.PrincipalID(), Type: claims.Role()}
}
