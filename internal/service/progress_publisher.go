package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/observability"
)

// ProgressPublisher forwards grading progress to other listeners.
type ProgressPublisher interface {
	Publish(ctx context.Context, event dto.GradingEvent) error
}

// MessagePublisher is the subset of *nats.Conn used for progress events.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// NoopProgressPublisher drops every event.
type NoopProgressPublisher struct{}

func (NoopProgressPublisher) Publish(context.Context, dto.GradingEvent) error { return nil }

type natsProgressPublisher struct {
	conn    MessagePublisher
	subject string
	logger  zerolog.Logger
}

// NewProgressPublisher publishes to "<subjectBase>.progress". A nil connection
// or empty subject yields a publisher that does nothing.
func NewProgressPublisher(conn MessagePublisher, subjectBase string, logger zerolog.Logger) ProgressPublisher {
	subjectBase = strings.Trim(strings.TrimSpace(subjectBase), ".")
	if conn == nil || subjectBase == "" {
		return NoopProgressPublisher{}
	}
	return &natsProgressPublisher{
		conn:    conn,
		subject: subjectBase + ".progress",
		logger:  logger.With().Str("component", "progress_publisher").Logger(),
	}
}

func (p *natsProgressPublisher) Publish(ctx context.Context, event dto.GradingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		observability.GradingProgressEvents().WithLabelValues("error").Inc()
		return err
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		observability.GradingProgressEvents().WithLabelValues("error").Inc()
		return err
	}

	observability.GradingProgressEvents().WithLabelValues("published").Inc()
	p.logger.Debug().Str("subject", p.subject).Str("batch_id", event.BatchID).Int("completed", event.Completed).Msg("progress published")
	return nil
}
