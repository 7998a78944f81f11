package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type roleChangePayload struct {
	RoleID   string `json:"role_id"`
	RoleCode string `json:"role_code"`
}

func roleChanges(changes []domain.RoleChange) []roleChangePayload {
	out := make([]roleChangePayload, 0, len(changes))
	for _, c := range changes {
		out = append(out, roleChangePayload{RoleID: c.RoleID, RoleCode: c.RoleCode})
	}
	return out
}

func permissionCodes(codes []domain.PermissionCode) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, string(c))
	}
	return out
}

// PublishRolesAssigned publishes authz.user.roles.assigned events.
func (p *EventPublisher) PublishRolesAssigned(ctx context.Context, event domain.RolesAssignedEvent) error {
	payload := struct {
		UserID     string              `json:"user_id"`
		RolesAdded []roleChangePayload `json:"roles_added"`
		AssignedBy string              `json:"assigned_by"`
		AssignedAt time.Time           `json:"assigned_at"`
		Metadata   map[string]any      `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		RolesAdded: roleChanges(event.RolesAdded),
		AssignedBy: event.AssignedBy,
		AssignedAt: event.AssignedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.user.roles.assigned", event.UserID, event.AssignedAt, payload)
}

// PublishRolesRevoked publishes authz.user.roles.revoked events.
func (p *EventPublisher) PublishRolesRevoked(ctx context.Context, event domain.RolesRevokedEvent) error {
	payload := struct {
		UserID       string              `json:"user_id"`
		RolesRemoved []roleChangePayload `json:"roles_removed"`
		RevokedBy    string              `json:"revoked_by"`
		RevokedAt    time.Time           `json:"revoked_at"`
		Reason       string              `json:"reason,omitempty"`
		Metadata     map[string]any      `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		RolesRemoved: roleChanges(event.RolesRemoved),
		RevokedBy:    event.RevokedBy,
		RevokedAt:    event.RevokedAt.UTC(),
		Reason:       event.Reason,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.user.roles.revoked", event.UserID, event.RevokedAt, payload)
}

// PublishGrantsChanged publishes authz.role.grants.changed events.
func (p *EventPublisher) PublishGrantsChanged(ctx context.Context, event domain.GrantsChangedEvent) error {
	payload := struct {
		RoleID    string         `json:"role_id"`
		Added     []string       `json:"added,omitempty"`
		Removed   []string       `json:"removed,omitempty"`
		ChangedBy string         `json:"changed_by"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		RoleID:    event.RoleID,
		Added:     permissionCodes(event.Added),
		Removed:   permissionCodes(event.Removed),
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.role.grants.changed", "", event.ChangedAt, payload)
}

// PublishUserCreated publishes authz.user.created events.
func (p *EventPublisher) PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		Username  string         `json:"username"`
		Email     *string        `json:"email,omitempty"`
		CreatedBy string         `json:"created_by"`
		CreatedAt time.Time      `json:"created_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		Username:  event.Username,
		Email:     event.Email,
		CreatedBy: event.CreatedBy,
		CreatedAt: event.CreatedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.user.created", event.UserID, event.CreatedAt, payload)
}

// PublishSessionEnded publishes authz.session.ended events.
func (p *EventPublisher) PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error {
	payload := struct {
		UserID   string         `json:"user_id"`
		OriginID string         `json:"origin_id"`
		Reason   string         `json:"reason,omitempty"`
		EndedAt  time.Time      `json:"ended_at"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{
		UserID:   event.UserID,
		OriginID: event.OriginID,
		Reason:   event.Reason,
		EndedAt:  event.EndedAt.UTC(),
		Metadata: event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.session.ended", event.UserID, event.EndedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
