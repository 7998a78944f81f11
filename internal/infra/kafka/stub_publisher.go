package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishRolesAssigned logs authz.user.roles.assigned events.
func (p *StubPublisher) PublishRolesAssigned(_ context.Context, event domain.RolesAssignedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"roles_added": event.RolesAdded,
		"assigned_by": event.AssignedBy,
		"assigned_at": event.AssignedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("authz.user.roles.assigned", event.UserID, event.AssignedAt, payload)
	return nil
}

// PublishRolesRevoked logs authz.user.roles.revoked events.
func (p *StubPublisher) PublishRolesRevoked(_ context.Context, event domain.RolesRevokedEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"roles_removed": event.RolesRemoved,
		"revoked_by":    event.RevokedBy,
		"revoked_at":    event.RevokedAt,
		"reason":        event.Reason,
		"metadata":      event.Metadata,
	}
	p.logEvent("authz.user.roles.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

// PublishGrantsChanged logs authz.role.grants.changed events.
func (p *StubPublisher) PublishGrantsChanged(_ context.Context, event domain.GrantsChangedEvent) error {
	payload := map[string]any{
		"role_id":    event.RoleID,
		"added":      event.Added,
		"removed":    event.Removed,
		"changed_by": event.ChangedBy,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("authz.role.grants.changed", "", event.ChangedAt, payload)
	return nil
}

// PublishUserCreated logs authz.user.created events.
func (p *StubPublisher) PublishUserCreated(_ context.Context, event domain.UserCreatedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"username":   event.Username,
		"email":      event.Email,
		"created_by": event.CreatedBy,
		"created_at": event.CreatedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("authz.user.created", event.UserID, event.CreatedAt, payload)
	return nil
}

// PublishSessionEnded logs authz.session.ended events.
func (p *StubPublisher) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	payload := map[string]any{
		"user_id":   event.UserID,
		"origin_id": event.OriginID,
		"reason":    event.Reason,
		"ended_at":  event.EndedAt,
		"metadata":  event.Metadata,
	}
	p.logEvent("authz.session.ended", event.UserID, event.EndedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
