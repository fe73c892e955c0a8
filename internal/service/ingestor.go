package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/metrics"
)

// Publisher fans ingested changes out to dashboard consumers. Publishing
// is best-effort; the pipeline never fails a delivery on publish errors.
type Publisher interface {
	PublishInboxEvent(ctx context.Context, ev *model.InboxEvent) error
}

// Ingestor persists normalized inbound messages and keeps the owning
// conversation and contact aggregates current.
type Ingestor struct {
	store     store.Store
	resolver  *Resolver
	publisher Publisher
	logger    *logger.Logger
}

// NewIngestor creates a message ingestor. publisher may be nil when
// fan-out is disabled.
func NewIngestor(st store.Store, resolver *Resolver, publisher Publisher, log *logger.Logger) *Ingestor {
	return &Ingestor{
		store:     st,
		resolver:  resolver,
		publisher: publisher,
		logger:    log,
	}
}

// Ingest resolves the sender identity and persists one inbound message.
// A provider message id already on record makes the whole call a no-op:
// the conflict-checked insert is the idempotency guard, so redelivered
// events cannot double-write the message or double-count unread.
func (i *Ingestor) Ingest(ctx context.Context, ev model.InboundMessage) error {
	identity, err := i.resolver.Resolve(ctx, ev.TenantID, ev.From, ev.ProfileName)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	providerID := ev.ProviderMessageID
	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		TenantID:          ev.TenantID,
		ConversationID:    identity.ConversationID,
		ContactID:         identity.ContactID,
		ProviderMessageID: &providerID,
		Direction:         model.DirectionInbound,
		Type:              ev.Type,
		Content:           ev.Content,
		MediaMimeType:     ev.MediaMimeType,
		// The provider already delivered this message to us.
		Status:    model.StatusDelivered,
		Timestamp: ev.Timestamp,
	}

	return i.persist(ctx, msg)
}

// RecordOutbound persists an internally originated outbound message
// through the same guarded path, with initial status sent. The unread
// counter is untouched; outbound traffic is never unread.
func (i *Ingestor) RecordOutbound(ctx context.Context, tenantID, conversationID, contactID, msgType, content string, providerMessageID *string, ts time.Time) (*model.Message, error) {
	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		TenantID:          tenantID,
		ConversationID:    conversationID,
		ContactID:         contactID,
		ProviderMessageID: providerMessageID,
		Direction:         model.DirectionOutbound,
		Type:              msgType,
		Content:           content,
		Status:            model.StatusSent,
		Timestamp:         ts,
	}
	if err := i.persist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// persist writes the message row first, then the conversation and
// contact bumps. The ordering means a partial failure can leave bumps
// behind for a later retry, but never aggregates for a message that was
// not actually stored.
func (i *Ingestor) persist(ctx context.Context, msg *model.Message) error {
	inserted, err := i.store.InsertMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		metrics.DuplicateMessagesTotal.Inc()
		i.logger.Debug("duplicate message suppressed",
			zap.Stringp("provider_message_id", msg.ProviderMessageID),
		)
		return nil
	}

	inbound := msg.Direction == model.DirectionInbound
	if err := i.store.BumpConversationActivity(ctx, msg.ConversationID, msg.Timestamp, inbound); err != nil {
		return fmt.Errorf("bump conversation: %w", err)
	}
	if err := i.store.BumpContactActivity(ctx, msg.ContactID, msg.Timestamp); err != nil {
		return fmt.Errorf("bump contact: %w", err)
	}

	metrics.MessagesIngestedTotal.WithLabelValues(msg.TenantID, string(msg.Direction)).Inc()

	i.publish(ctx, &model.InboxEvent{
		Type:           model.InboxEventMessage,
		TenantID:       msg.TenantID,
		ConversationID: msg.ConversationID,
		ContactID:      msg.ContactID,
		MessageID:      msg.ID,
		Timestamp:      msg.Timestamp,
	})

	return nil
}

func (i *Ingestor) publish(ctx context.Context, ev *model.InboxEvent) {
	if i.publisher == nil {
		return
	}
	if err := i.publisher.PublishInboxEvent(ctx, ev); err != nil {
		metrics.FanoutPublishesTotal.WithLabelValues("error").Inc()
		i.logger.Warn("inbox fan-out publish failed",
			zap.String("conversation_id", ev.ConversationID),
			zap.Error(err),
		)
		return
	}
	metrics.FanoutPublishesTotal.WithLabelValues("ok").Inc()
}
