package store

import (
	"context"
	"sync"
	"time"

	"github.com/wavedesk/messaging-platform/internal/model"
)

// Memory is an in-process Store used by tests and database-less local
// runs. A single mutex makes every operation atomic, which is what the
// unique indexes provide in the Postgres implementation.
type Memory struct {
	mu sync.Mutex

	tenantsByPhoneID map[string]*model.Tenant

	contacts     map[string]*model.Contact
	contactIDs   map[contactKey]string
	convos       map[string]*model.Conversation
	convoIDs     map[convoKey]string
	messages     map[string]*model.Message
	msgIDsByProv map[string]string
}

type contactKey struct {
	tenantID string
	phone    string
}

type convoKey struct {
	tenantID  string
	contactID string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tenantsByPhoneID: make(map[string]*model.Tenant),
		contacts:         make(map[string]*model.Contact),
		contactIDs:       make(map[contactKey]string),
		convos:           make(map[string]*model.Conversation),
		convoIDs:         make(map[convoKey]string),
		messages:         make(map[string]*model.Message),
		msgIDsByProv:     make(map[string]string),
	}
}

// AddTenant registers a tenant. Tenants are provisioned out of band; the
// pipeline only reads them.
func (s *Memory) AddTenant(t model.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = newID()
	}
	s.tenantsByPhoneID[t.WhatsAppPhoneNumberID] = &t
}

// Ping implements Store.
func (s *Memory) Ping(ctx context.Context) error {
	return nil
}

// FindTenantByPhoneNumberID implements Store.
func (s *Memory) FindTenantByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenantsByPhoneID[phoneNumberID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// UpsertContact implements Store.
func (s *Memory) UpsertContact(ctx context.Context, tenantID, phone string, name *string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := contactKey{tenantID: tenantID, phone: phone}
	if id, ok := s.contactIDs[key]; ok {
		return id, false, nil
	}

	c := &model.Contact{
		ID:        newID(),
		TenantID:  tenantID,
		Phone:     phone,
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.contacts[c.ID] = c
	s.contactIDs[key] = c.ID
	return c.ID, true, nil
}

// UpsertConversation implements Store.
func (s *Memory) UpsertConversation(ctx context.Context, tenantID, contactID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := convoKey{tenantID: tenantID, contactID: contactID}
	if id, ok := s.convoIDs[key]; ok {
		return id, false, nil
	}

	c := &model.Conversation{
		ID:        newID(),
		TenantID:  tenantID,
		ContactID: contactID,
		Status:    model.ConversationOpen,
		CreatedAt: time.Now(),
	}
	s.convos[c.ID] = c
	s.convoIDs[key] = c.ID
	return c.ID, true, nil
}

// InsertMessage implements Store.
func (s *Memory) InsertMessage(ctx context.Context, msg *model.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ProviderMessageID != nil {
		if _, seen := s.msgIDsByProv[*msg.ProviderMessageID]; seen {
			return false, nil
		}
	}

	copied := *msg
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.messages[copied.ID] = &copied
	if copied.ProviderMessageID != nil {
		s.msgIDsByProv[*copied.ProviderMessageID] = copied.ID
	}
	return true, nil
}

// BumpConversationActivity implements Store.
func (s *Memory) BumpConversationActivity(ctx context.Context, conversationID string, ts time.Time, incrementUnread bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convos[conversationID]
	if !ok {
		return ErrNotFound
	}
	if c.LastMessageAt == nil || ts.After(*c.LastMessageAt) {
		t := ts
		c.LastMessageAt = &t
	}
	if incrementUnread {
		c.UnreadCount++
	}
	return nil
}

// BumpContactActivity implements Store.
func (s *Memory) BumpContactActivity(ctx context.Context, contactID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[contactID]
	if !ok {
		return ErrNotFound
	}
	if c.LastMessageAt == nil || ts.After(*c.LastMessageAt) {
		t := ts
		c.LastMessageAt = &t
	}
	return nil
}

// FindMessageByProviderID implements Store.
func (s *Memory) FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.msgIDsByProv[providerMessageID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.messages[id]
	return &copied, nil
}

// UpdateMessageStatus implements Store.
func (s *Memory) UpdateMessageStatus(ctx context.Context, messageID string, status model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	if !m.Status.Advances(status) {
		return false, nil
	}
	m.Status = status
	return true, nil
}

// Contact returns a snapshot of a contact. Test helper.
func (s *Memory) Contact(id string) (model.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return model.Contact{}, false
	}
	return *c, true
}

// Conversation returns a snapshot of a conversation. Test helper.
func (s *Memory) Conversation(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convos[id]
	if !ok {
		return model.Conversation{}, false
	}
	return *c, true
}

// Counts returns entity totals. Test helper.
func (s *Memory) Counts() (contacts, conversations, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts), len(s.convos), len(s.messages)
}
