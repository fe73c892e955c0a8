package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/metrics"
)

// Pipeline composes the full ingestion path for one webhook delivery.
// It holds no state across deliveries and is safe to run from any number
// of concurrent request handlers; all convergence under races happens at
// the store's atomic operations.
type Pipeline struct {
	normalizer *Normalizer
	ingestor   *Ingestor
	reconciler *Reconciler
	logger     *logger.Logger
}

// NewPipeline wires the pipeline from a store and an optional fan-out
// publisher.
func NewPipeline(st store.Store, publisher Publisher, log *logger.Logger) *Pipeline {
	resolver := NewResolver(st, log)
	return &Pipeline{
		normalizer: NewNormalizer(st, log),
		ingestor:   NewIngestor(st, resolver, publisher, log),
		reconciler: NewReconciler(st, publisher, log),
		logger:     log,
	}
}

// Ingestor exposes the ingestor for internally originated outbound
// messages that must ride the same guarded persistence path.
func (p *Pipeline) Ingestor() *Ingestor {
	return p.ingestor
}

// Process runs one delivery end to end. ErrInvalidPayload means the
// envelope was rejected outright; any other error aborts the delivery so
// the provider redelivers, which the idempotency guard makes safe.
func (p *Pipeline) Process(ctx context.Context, payload *model.WebhookPayload) error {
	inbound, statuses, err := p.normalizer.Normalize(ctx, payload)
	if err != nil {
		return err
	}

	for _, ev := range inbound {
		if err := p.ingestor.Ingest(ctx, ev); err != nil {
			metrics.RecordEvent("inbound_message", "error")
			return err
		}
		metrics.RecordEvent("inbound_message", "ok")
	}

	for _, ev := range statuses {
		if err := p.reconciler.Reconcile(ctx, ev); err != nil {
			metrics.RecordEvent("status_update", "error")
			return err
		}
		metrics.RecordEvent("status_update", "ok")
	}

	p.logger.Debug("delivery processed",
		zap.Int("inbound", len(inbound)),
		zap.Int("statuses", len(statuses)),
	)

	return nil
}
