package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Brunomssil/design_platform/internal/models"
	"github.com/Brunomssil/design_platform/internal/mykafka"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

// Publisher writes audit entries to the audit topic. Security-relevant
// actions (registration, login, token reuse) go through here.
type Publisher struct {
	Events EventPublisher
}

func (p *Publisher) Publish(ctx context.Context, action, userID, details string) error {
	entry := models.AuditLogEntry{
		LogID:     uuid.NewString(),
		Action:    action,
		UserID:    userID,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	return p.Events.PublishEvent(ctx, mykafka.TopicAuditEvents, userID, entry)
}
