// Package audit provides the audit event sink. Events are fire-and-forget
// observability and never gate correctness.
package audit

import (
	"context"
	"log/slog"

	"github.com/user/listing-sentinel/internal/domain"
)

// SlogSink records audit events as structured log entries.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates an audit sink backed by the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("component", "audit")}
}

// TrackEvent emits one audit record. The ambient tenant context, when
// present, is attached for traceability.
func (s *SlogSink) TrackEvent(ctx context.Context, name string, properties map[string]string) {
	attrs := make([]any, 0, 2*(len(properties)+2))
	attrs = append(attrs, "event", name)
	if tc, err := domain.TenantFromContext(ctx); err == nil {
		attrs = append(attrs, "tenant_id", tc.TenantID)
	}
	for k, v := range properties {
		attrs = append(attrs, k, v)
	}
	s.logger.Info("audit", attrs...)
}
