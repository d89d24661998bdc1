package pipeline

import (
	"context"
	"log/slog"

	"github.com/medscan-app/medscan/internal/entity"
)

// AuditSink records accesses to captured health data. Recording is
// best effort; a failing sink never fails the pipeline.
type AuditSink interface {
	Record(ctx context.Context, ev entity.AuditEvent) error
}

// LogAuditSink writes audit events to the structured log.
type LogAuditSink struct {
	logger *slog.Logger
}

func NewLogAuditSink(logger *slog.Logger) *LogAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAuditSink{logger: logger}
}

func (s *LogAuditSink) Record(ctx context.Context, ev entity.AuditEvent) error {
	attrs := []any{
		"document_id", ev.DocumentID,
		"access_type", ev.AccessType,
		"occurred_at", ev.OccurredAt,
	}
	for k, v := range ev.Metadata {
		attrs = append(attrs, "meta_"+k, v)
	}
	s.logger.InfoContext(ctx, "audit.access", attrs...)
	return nil
}
