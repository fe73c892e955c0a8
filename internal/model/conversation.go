package model

import (
	"time"
)

// Tenant is an onboarded business account. The pipeline never mutates
// tenants; it only resolves the WhatsApp phone number id to one.
type Tenant struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	WhatsAppPhoneNumberID string `json:"whatsapp_phone_number_id"`
}

// Contact is a customer phone number under a tenant, unique per
// (tenant_id, phone). Created lazily on first inbound message.
type Contact struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Phone         string     `json:"phone"`
	Name          *string    `json:"name,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is the single thread between a tenant and a contact,
// unique per (tenant_id, contact_id). The pipeline only ever creates
// open conversations; closing and unread reset belong to the dashboard.
type Conversation struct {
	ID            string             `json:"id"`
	TenantID      string             `json:"tenant_id"`
	ContactID     string             `json:"contact_id"`
	Status        ConversationStatus `json:"status"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	UnreadCount   int                `json:"unread_count"`
	CreatedAt     time.Time          `json:"created_at"`
}
