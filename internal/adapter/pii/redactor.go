// Package pii scrubs personal contact details from upstream listing payloads
// before they enter the pipeline. RentCast listings carry agent and office
// contact information; whatever survives redaction is persisted with the
// match and delivered with alerts.
package pii

import (
	"log/slog"

	"github.com/user/listing-sentinel/internal/domain"
)

// RedactedPlaceholder replaces the value of every redacted contact field.
const RedactedPlaceholder = "[REDACTED]"

// Redactor removes configured contact fields from listings in place.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given contact field names
// (e.g. "agentEmail", "officePhone"). An empty field list disables redaction.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field == "" {
			continue
		}
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger.With("component", "pii_redactor"),
	}
}

// Redact masks the configured contact fields of every listing. It reports
// how many listings carried at least one redacted field.
func (r *Redactor) Redact(listings []domain.RentCastListing) int {
	if len(r.fieldsToRedact) == 0 {
		return 0
	}

	redacted := 0
	for i := range listings {
		contact := listings[i].Contact
		if len(contact) == 0 {
			continue
		}
		hit := false
		for field := range r.fieldsToRedact {
			if _, ok := contact[field]; ok {
				contact[field] = RedactedPlaceholder
				hit = true
			}
		}
		if hit {
			redacted++
		}
	}
	if redacted > 0 {
		r.logger.Debug("redacted contact details from listings", "listings", redacted)
	}
	return redacted
}
