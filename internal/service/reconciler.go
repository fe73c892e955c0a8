package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/metrics"
)

// Reconciler applies provider delivery-status updates to previously
// persisted outbound messages.
type Reconciler struct {
	store     store.Store
	publisher Publisher
	logger    *logger.Logger
}

// NewReconciler creates a status reconciler. publisher may be nil.
func NewReconciler(st store.Store, publisher Publisher, log *logger.Logger) *Reconciler {
	return &Reconciler{store: st, publisher: publisher, logger: log}
}

// Reconcile applies one status update. Updates for unknown messages,
// unknown status strings, out-of-order arrivals and already terminal
// messages are all silently dropped: at-least-once delivery and
// asynchronous status emission make every one of them routine.
func (r *Reconciler) Reconcile(ctx context.Context, ev model.StatusUpdate) error {
	status, ok := model.ParseStatus(ev.Status)
	if !ok {
		metrics.RecordStatusTransition(ev.Status, "unknown_status")
		r.logger.Debug("untracked status value dropped",
			zap.String("status", ev.Status),
			zap.String("provider_message_id", ev.ProviderMessageID),
		)
		return nil
	}

	msg, err := r.store.FindMessageByProviderID(ctx, ev.ProviderMessageID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.RecordStatusTransition(string(status), "unknown_message")
		r.logger.Debug("status for untracked message dropped",
			zap.String("provider_message_id", ev.ProviderMessageID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find message %q: %w", ev.ProviderMessageID, err)
	}

	applied, err := r.store.UpdateMessageStatus(ctx, msg.ID, status)
	if err != nil {
		return fmt.Errorf("update status of %s: %w", msg.ID, err)
	}
	if !applied {
		metrics.RecordStatusTransition(string(status), "ignored")
		return nil
	}

	metrics.RecordStatusTransition(string(status), "applied")

	if r.publisher != nil {
		inboxEv := &model.InboxEvent{
			Type:           model.InboxEventStatus,
			TenantID:       msg.TenantID,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			Status:         status,
			Timestamp:      ev.Timestamp,
		}
		if err := r.publisher.PublishInboxEvent(ctx, inboxEv); err != nil {
			metrics.FanoutPublishesTotal.WithLabelValues("error").Inc()
			r.logger.Warn("status fan-out publish failed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		} else {
			metrics.FanoutPublishesTotal.WithLabelValues("ok").Inc()
		}
	}

	return nil
}
