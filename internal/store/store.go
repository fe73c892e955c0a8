// Package store defines the durable state contract the webhook pipeline
// consumes, plus its Postgres and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wavedesk/messaging-platform/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract for the ingestion pipeline. All
// create paths on unique keys are atomic insert-if-absent operations;
// callers never check-then-insert.
type Store interface {
	// FindTenantByPhoneNumberID resolves a provider phone number id to
	// the tenant it belongs to. Returns ErrNotFound for unknown ids.
	FindTenantByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Tenant, error)

	// UpsertContact inserts a contact for (tenantID, phone) if absent and
	// returns its id. Concurrent calls for the same key converge on one
	// row; created reports whether this call inserted it. The name is
	// only applied on insert.
	UpsertContact(ctx context.Context, tenantID, phone string, name *string) (id string, created bool, err error)

	// UpsertConversation inserts an open conversation for
	// (tenantID, contactID) if absent and returns its id.
	UpsertConversation(ctx context.Context, tenantID, contactID string) (id string, created bool, err error)

	// InsertMessage persists a message. When the message carries a
	// provider message id that was already recorded, nothing is written
	// and inserted is false; this doubles as the idempotency guard, so a
	// message can never be marked seen without being persisted.
	InsertMessage(ctx context.Context, msg *model.Message) (inserted bool, err error)

	// BumpConversationActivity moves the conversation's last-message
	// timestamp forward to ts if later, and increments the unread
	// counter when incrementUnread is set.
	BumpConversationActivity(ctx context.Context, conversationID string, ts time.Time, incrementUnread bool) error

	// BumpContactActivity moves the contact's last-activity timestamp
	// forward to ts if later.
	BumpContactActivity(ctx context.Context, contactID string, ts time.Time) error

	// FindMessageByProviderID looks a message up by its provider-assigned
	// id. Returns ErrNotFound when the id is untracked.
	FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error)

	// UpdateMessageStatus applies status to the message only if it is
	// forward progress under sent < delivered < read, never overwriting
	// failed. The check and write are one atomic operation; applied
	// reports whether the row changed.
	UpdateMessageStatus(ctx context.Context, messageID string, status model.Status) (applied bool, err error)

	// Ping reports backend reachability for readiness checks.
	Ping(ctx context.Context) error
}
