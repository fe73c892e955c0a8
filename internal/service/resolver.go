package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/metrics"
)

// Identity is the durable pair a sender resolves to.
type Identity struct {
	ContactID      string
	ConversationID string
}

// Resolver maps (tenant, phone) to a contact and its single open
// conversation, creating both lazily on first sight.
type Resolver struct {
	store  store.Store
	logger *logger.Logger
}

// NewResolver creates an identity resolver.
func NewResolver(st store.Store, log *logger.Logger) *Resolver {
	return &Resolver{store: st, logger: log}
}

// Resolve returns the contact and conversation ids for a sender. Both
// creates ride on atomic insert-if-absent store operations, so
// concurrent first-contact deliveries converge on one contact and one
// conversation instead of duplicating either.
func (r *Resolver) Resolve(ctx context.Context, tenantID, phone string, profileName *string) (Identity, error) {
	contactID, created, err := r.store.UpsertContact(ctx, tenantID, phone, profileName)
	if err != nil {
		return Identity{}, fmt.Errorf("upsert contact: %w", err)
	}
	if created {
		metrics.ContactsCreatedTotal.WithLabelValues(tenantID).Inc()
		r.logger.Info("contact created",
			zap.String("tenant_id", tenantID),
			zap.String("contact_id", contactID),
		)
	}

	conversationID, _, err := r.store.UpsertConversation(ctx, tenantID, contactID)
	if err != nil {
		return Identity{}, fmt.Errorf("upsert conversation: %w", err)
	}

	return Identity{ContactID: contactID, ConversationID: conversationID}, nil
}
