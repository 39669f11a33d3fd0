// Package notify broadcasts domain notices (an application was submitted, an
// event was deleted) to downstream consumers. Delivery is best effort: a
// failed publish is logged by the caller and never fails the request.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/metrics"
)

// Notice types.
const (
	ApplicationSubmitted    = "application.submitted"
	ApplicationAmended      = "application.amended"
	ApplicationRemoved      = "application.removed"
	EventDeleted            = "event.deleted"
	JobApplicationSubmitted = "job_application.submitted"
)

// Notice is one domain occurrence. Type doubles as the routing key.
type Notice struct {
	Type       string            `json:"type"`
	ResourceID string            `json:"resource_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher delivers notices.
type Publisher interface {
	Publish(ctx context.Context, notice Notice) error
}

// Nop drops every notice. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Notice) error { return nil }

// New builds a Notice stamped with the current time.
func New(typ, resourceID string, attrs map[string]string) Notice {
	return Notice{
		Type:       typ,
		ResourceID: resourceID,
		Attributes: attrs,
		OccurredAt: time.Now().UTC(),
	}
}

// Emit publishes notice and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, logger zerolog.Logger, notice Notice) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, notice); err != nil {
		metrics.NoticePublishFailures.WithLabelValues(notice.Type).Inc()
		logger.Warn().Err(err).
			Str("notice", notice.Type).
			Str("resource_id", notice.ResourceID).
			Msg("notice publish failed")
	}
}
