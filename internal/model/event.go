package model

import (
	"time"
)

// InboundMessage is a normalized inbound message event, flattened out of
// the webhook envelope and tagged with its resolved tenant.
type InboundMessage struct {
	TenantID          string
	From              string
	ProfileName       *string
	ProviderMessageID string
	Type              string
	Content           string
	MediaMimeType     *string
	Timestamp         time.Time
}

// StatusUpdate is a normalized delivery-status event for a previously
// sent outbound message.
type StatusUpdate struct {
	TenantID          string
	ProviderMessageID string
	Status            string
	RecipientID       string
	Timestamp         time.Time
}

// InboxEventType tags fan-out events published for dashboard consumers.
type InboxEventType string

const (
	InboxEventMessage InboxEventType = "message"
	InboxEventStatus  InboxEventType = "status"
)

// InboxEvent is the change notification published to JetStream after a
// message is ingested or a status transition is applied.
type InboxEvent struct {
	Type           InboxEventType `json:"type"`
	TenantID       string         `json:"tenant_id"`
	ConversationID string         `json:"conversation_id"`
	ContactID      string         `json:"contact_id,omitempty"`
	MessageID      string         `json:"message_id"`
	Status         Status         `json:"status,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
