// Package service implements the webhook ingestion pipeline: payload
// normalization, identity resolution, message ingestion and delivery
// status reconciliation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/metrics"
)

// ErrInvalidPayload is returned when the delivery does not carry the
// WhatsApp business account object discriminator. The whole delivery is
// rejected; nothing is processed.
var ErrInvalidPayload = errors.New("service: unexpected webhook object")

// Normalizer flattens a webhook envelope into tenant-tagged events.
type Normalizer struct {
	store  store.Store
	logger *logger.Logger
}

// NewNormalizer creates a normalizer backed by the given store.
func NewNormalizer(st store.Store, log *logger.Logger) *Normalizer {
	return &Normalizer{store: st, logger: log}
}

// Normalize validates the envelope and emits one InboundMessage per
// message record and one StatusUpdate per status record, each tagged
// with its resolved tenant. Changes for phone number ids no tenant owns
// are skipped, not failed: one delivery can mix events for tenants this
// deployment does not host.
func (n *Normalizer) Normalize(ctx context.Context, payload *model.WebhookPayload) ([]model.InboundMessage, []model.StatusUpdate, error) {
	if payload.Object != model.WebhookObject {
		return nil, nil, ErrInvalidPayload
	}

	var (
		inbound  []model.InboundMessage
		statuses []model.StatusUpdate
	)

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			phoneNumberID := change.Value.Metadata.PhoneNumberID

			tenant, err := n.store.FindTenantByPhoneNumberID(ctx, phoneNumberID)
			if errors.Is(err, store.ErrNotFound) {
				n.logger.Warn("no tenant for phone number id, skipping change",
					zap.String("phone_number_id", phoneNumberID),
					zap.String("entry_id", entry.ID),
				)
				metrics.UnknownTenantChangesTotal.Inc()
				continue
			}
			if err != nil {
				return nil, nil, fmt.Errorf("resolve tenant for %q: %w", phoneNumberID, err)
			}

			for _, msg := range change.Value.Messages {
				inbound = append(inbound, n.normalizeMessage(tenant.ID, change.Value.Contacts, msg))
			}

			for _, st := range change.Value.Statuses {
				statuses = append(statuses, model.StatusUpdate{
					TenantID:          tenant.ID,
					ProviderMessageID: st.ID,
					Status:            st.Status,
					RecipientID:       st.RecipientID,
					Timestamp:         n.parseTimestamp(st.Timestamp),
				})
			}
		}
	}

	return inbound, statuses, nil
}

func (n *Normalizer) normalizeMessage(tenantID string, contacts []model.ProfileContact, msg model.WebhookMessage) model.InboundMessage {
	content, mime := normalizeContent(msg)

	return model.InboundMessage{
		TenantID:          tenantID,
		From:              msg.From,
		ProfileName:       profileName(contacts, msg.From),
		ProviderMessageID: msg.ID,
		Type:              msg.Type,
		Content:           content,
		MediaMimeType:     mime,
		Timestamp:         n.parseTimestamp(msg.Timestamp),
	}
}

// normalizeContent maps a typed message body to textual content plus an
// optional media mime type. Unknown types are kept with a placeholder,
// never dropped; the raw type tag travels on the event.
func normalizeContent(msg model.WebhookMessage) (string, *string) {
	switch {
	case msg.Type == "text" && msg.Text != nil:
		return msg.Text.Body, nil
	case msg.Type == "image" && msg.Image != nil:
		return "Image", &msg.Image.MimeType
	case msg.Type == "video" && msg.Video != nil:
		return "Video", &msg.Video.MimeType
	case msg.Type == "audio" && msg.Audio != nil:
		return "Audio", &msg.Audio.MimeType
	case msg.Type == "document" && msg.Document != nil:
		name := msg.Document.Filename
		if name == "" {
			name = "Document"
		}
		return name, &msg.Document.MimeType
	default:
		return "Unsupported message", nil
	}
}

// profileName picks the display name the provider attached for the
// sender, preferring a wa_id match over positional lookup.
func profileName(contacts []model.ProfileContact, from string) *string {
	for i := range contacts {
		if contacts[i].WaID == from && contacts[i].Profile.Name != "" {
			return &contacts[i].Profile.Name
		}
	}
	if len(contacts) > 0 && contacts[0].Profile.Name != "" {
		return &contacts[0].Profile.Name
	}
	return nil
}

// parseTimestamp converts the provider's unix-seconds string. Receipt
// time stands in when the field is missing or garbled.
func (n *Normalizer) parseTimestamp(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		n.logger.Debug("unparseable event timestamp", zap.String("raw", raw))
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
