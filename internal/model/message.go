// Package model defines data structures for the messaging platform.
package model

import (
	"time"
)

// Direction indicates who originated a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status is the delivery status of a message. Statuses only ever move
// forward through sent -> delivered -> read; failed is terminal.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRanks = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
	StatusFailed:    3,
}

// ParseStatus maps a provider status string to a Status. The second
// return value is false for statuses this pipeline does not track.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := statusRanks[st]
	return st, ok
}

// Rank returns the position of the status in the delivery ordering.
func (s Status) Rank() int {
	return statusRanks[s]
}

// Terminal reports whether the status can never be overwritten.
func (s Status) Terminal() bool {
	return s == StatusFailed
}

// Advances reports whether moving from s to next is forward progress.
func (s Status) Advances(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.Rank() > s.Rank()
}

// Message is a persisted conversation message.
type Message struct {
	// Identity
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	ConversationID string `json:"conversation_id"`
	ContactID      string `json:"contact_id"`

	// ProviderMessageID is the WhatsApp-assigned message id. Unique when
	// present; it is the idempotency key for webhook redeliveries. Nil for
	// internally originated messages.
	ProviderMessageID *string `json:"provider_message_id,omitempty"`

	// Content
	Direction     Direction `json:"direction"`
	Type          string    `json:"type"`
	Content       string    `json:"content"`
	MediaMimeType *string   `json:"media_mime_type,omitempty"`

	// Delivery
	Status Status `json:"status"`

	// Timestamp is the provider-supplied event time, not ingestion time.
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}
