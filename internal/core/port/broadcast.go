package port

import (
	"context"

	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// Broadcaster is the cross-context session channel. Publish is fire and
// forget: the transport guarantees neither delivery nor ordering, and a
// failed publish must never crash the publisher. Subscribe delivers events
// to the handler until ctx is cancelled.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
	Subscribe(ctx context.Context, handler func(domain.SessionEvent)) error
}
