// Package ports defines shared interfaces for the resolution kernel.
// Interfaces live here when consumed by multiple packages to avoid
// duplication.
package ports

import (
	"context"
	"log/slog"

	id "dealroom/pkg/domain"
	"dealroom/pkg/platform/audit"
)

// AuditPublisher emits audit events for resolution-relevant operations
// (aggregate creation, reconciliation merges, rejected observations).
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ClaimStore records which extraction domain claimed an (document, entity
// name) span. Implementations must be safe for concurrent use; lookups are
// case-insensitive on the entity name.
type ClaimStore interface {
	// Put registers a claim. The first claim for a (doc, name, domain) wins;
	// re-claiming the same triple is a no-op.
	Put(ctx context.Context, docID id.DocumentID, normalizedName, domain string) error

	// Get returns the claiming domains for a (doc, name) pair, in claim order.
	Get(ctx context.Context, docID id.DocumentID, normalizedName string) ([]string, error)
}

// LogAudit is a shared helper for audit logging across kernel services. It
// logs to the structured logger and emits to the audit publisher when one is
// configured; a publisher failure is logged, never propagated, because audit
// is advisory to resolution correctness.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Action, attrs ...any) {
	args := append(attrs, "event", string(event), "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, audit.NewEvent(event, attrs...)); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
