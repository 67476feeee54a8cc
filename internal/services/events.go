package services

import (
	"context"
	"log/slog"

	"conti/internal/amqp"
	"conti/internal/core"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error
}

type reportInvalidator interface {
	Invalidate(groupID core.GroupID)
}

// ledgerChanged invalidates the cached report and announces the change.
// Publishing failures are logged only: the change is already persisted.
func ledgerChanged(ctx context.Context, inv reportInvalidator, pub EventPublisher, ev amqp.LedgerEvent) {
	if inv != nil {
		inv.Invalidate(ev.GroupID)
	}
	if pub == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping ledger event", "type", ev.Type)
		return
	}
	if err := pub.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"group_id", ev.GroupID,
			"entity_id", ev.EntityID,
			"error", err)
	}
}
