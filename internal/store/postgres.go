package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wavedesk/messaging-platform/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect creates a pgx pool from a DSN, applies pool defaults and
// verifies connectivity with a ping.
func Connect(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = 60 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Migrate applies the embedded schema. Statements are idempotent, so
// running it on every boot is safe.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Ping implements Store.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindTenantByPhoneNumberID implements Store.
func (s *Postgres) FindTenantByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, whatsapp_phone_number_id
		FROM tenants
		WHERE whatsapp_phone_number_id = $1
	`, phoneNumberID).Scan(&t.ID, &t.Name, &t.WhatsAppPhoneNumberID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find tenant: %w", err)
	}
	return &t, nil
}

// UpsertContact implements Store. The insert races through the unique
// index on (tenant_id, phone); losers of the race fall back to reading
// the surviving row.
func (s *Postgres) UpsertContact(ctx context.Context, tenantID, phone string, name *string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (id, tenant_id, phone, name, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, now())
		ON CONFLICT (tenant_id, phone) DO NOTHING
		RETURNING id::text
	`, newID(), tenantID, phone, name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("postgres: upsert contact: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT id::text FROM contacts WHERE tenant_id = $1::uuid AND phone = $2
	`, tenantID, phone).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("postgres: select contact after conflict: %w", err)
	}
	return id, false, nil
}

// UpsertConversation implements Store.
func (s *Postgres) UpsertConversation(ctx context.Context, tenantID, contactID string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, tenant_id, contact_id, status, unread_count, created_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, 'open', 0, now())
		ON CONFLICT (tenant_id, contact_id) DO NOTHING
		RETURNING id::text
	`, newID(), tenantID, contactID).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("postgres: upsert conversation: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT id::text FROM conversations WHERE tenant_id = $1::uuid AND contact_id = $2::uuid
	`, tenantID, contactID).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("postgres: select conversation after conflict: %w", err)
	}
	return id, false, nil
}

// InsertMessage implements Store. The partial unique index on
// provider_message_id makes the insert the idempotency check.
func (s *Postgres) InsertMessage(ctx context.Context, msg *model.Message) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO messages (
			id, tenant_id, conversation_id, contact_id, provider_message_id,
			direction, type, content, media_mime_type, status, timestamp, created_at
		) VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (provider_message_id) WHERE provider_message_id IS NOT NULL DO NOTHING
	`, msg.ID, msg.TenantID, msg.ConversationID, msg.ContactID, msg.ProviderMessageID,
		string(msg.Direction), msg.Type, msg.Content, msg.MediaMimeType, string(msg.Status), msg.Timestamp)
	if err != nil {
		return false, fmt.Errorf("postgres: insert message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// BumpConversationActivity implements Store.
func (s *Postgres) BumpConversationActivity(ctx context.Context, conversationID string, ts time.Time, incrementUnread bool) error {
	increment := 0
	if incrementUnread {
		increment = 1
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(COALESCE(last_message_at, 'epoch'::timestamptz), $2),
		    unread_count = unread_count + $3
		WHERE id = $1::uuid
	`, conversationID, ts, increment)
	if err != nil {
		return fmt.Errorf("postgres: bump conversation: %w", err)
	}
	return nil
}

// BumpContactActivity implements Store.
func (s *Postgres) BumpContactActivity(ctx context.Context, contactID string, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE contacts
		SET last_message_at = GREATEST(COALESCE(last_message_at, 'epoch'::timestamptz), $2)
		WHERE id = $1::uuid
	`, contactID, ts)
	if err != nil {
		return fmt.Errorf("postgres: bump contact: %w", err)
	}
	return nil
}

// FindMessageByProviderID implements Store.
func (s *Postgres) FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	var m model.Message
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, conversation_id::text, contact_id::text,
		       provider_message_id, direction, type, content, media_mime_type,
		       status, timestamp, created_at
		FROM messages
		WHERE provider_message_id = $1
	`, providerMessageID).Scan(
		&m.ID, &m.TenantID, &m.ConversationID, &m.ContactID,
		&m.ProviderMessageID, &m.Direction, &m.Type, &m.Content, &m.MediaMimeType,
		&m.Status, &m.Timestamp, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find message: %w", err)
	}
	return &m, nil
}

// UpdateMessageStatus implements Store. The rank comparison runs inside
// the UPDATE so concurrent reconcilers cannot regress a status.
func (s *Postgres) UpdateMessageStatus(ctx context.Context, messageID string, status model.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2
		WHERE id = $1::uuid
		  AND status <> 'failed'
		  AND CASE status
		        WHEN 'sent' THEN 0
		        WHEN 'delivered' THEN 1
		        WHEN 'read' THEN 2
		        ELSE 3
		      END <
		      CASE $2::text
		        WHEN 'sent' THEN 0
		        WHEN 'delivered' THEN 1
		        WHEN 'read' THEN 2
		        ELSE 3
		      END
	`, messageID, string(status))
	if err != nil {
		return false, fmt.Errorf("postgres: update status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
