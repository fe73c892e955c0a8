package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/wavedesk/messaging-platform/internal/model"
)

const (
	// StreamName is the name of the inbox fan-out stream.
	StreamName = "INBOX"

	// SubjectPrefix is the prefix for all inbox subjects.
	SubjectPrefix = "inbox"
)

// InboxPublisher publishes conversation change notifications to
// JetStream for dashboard instances to consume.
type InboxPublisher struct {
	client *Client
}

// NewInboxPublisher creates an inbox publisher.
func NewInboxPublisher(client *Client) *InboxPublisher {
	return &InboxPublisher{client: client}
}

// EnsureStream ensures the inbox stream exists with proper configuration.
func (p *InboxPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Conversation change notifications for dashboard consumers",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an inbox event.
func EventSubject(tenantID, conversationID string, eventType model.InboxEventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, tenantID, conversationID, eventType)
}

// PublishInboxEvent publishes a change notification. Implements
// service.Publisher.
func (p *InboxPublisher) PublishInboxEvent(ctx context.Context, ev *model.InboxEvent) error {
	subject := EventSubject(ev.TenantID, ev.ConversationID, ev.Type)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal inbox event: %w", err)
	}

	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish inbox event: %w", err)
	}

	return nil
}
