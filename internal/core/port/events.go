package port

import (
	"context"

	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishRolesAssigned(ctx context.Context, event domain.RolesAssignedEvent) error
	PublishRolesRevoked(ctx context.Context, event domain.RolesRevokedEvent) error
	PublishGrantsChanged(ctx context.Context, event domain.GrantsChangedEvent) error
	PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error
	PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error
}
