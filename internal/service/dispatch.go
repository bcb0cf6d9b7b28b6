package service

import (
	"context"

	"go.uber.org/zap"

	"dasa-hub/internal/metrics"
)

// Publisher is satisfied by *event.Bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// dispatchLifecycle runs after the entity write has committed. A failure
// leaves the entity in place; the backfill job repairs missing rows later.
func dispatchLifecycle(ctx context.Context, bus Publisher, logger *zap.Logger, topic, ref string, payload any) {
	if bus == nil {
		return
	}

	if err := bus.Publish(ctx, topic, payload); err != nil {
		metrics.IncLifecycleDispatchFailure(topic)
		logger.Error("lifecycle dispatch failed",
			zap.String("topic", topic),
			zap.String("source", ref),
			zap.Error(err),
		)
	}
}
