package service

import (
	"context"
	"testing"
	"time"

	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
)

// seedOutbound persists one outbound message with the given provider id
// and returns its internal id.
func seedOutbound(t *testing.T, p *Pipeline, mem *store.Memory, tenantID, providerID string) string {
	t.Helper()
	ctx := context.Background()

	resolver := NewResolver(mem, logger.NewNop())
	identity, err := resolver.Resolve(ctx, tenantID, testSender, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	msg, err := p.Ingestor().RecordOutbound(ctx, tenantID, identity.ConversationID, identity.ContactID,
		"text", "your order shipped", &providerID, time.Unix(1700000000, 0).UTC())
	if err != nil {
		t.Fatalf("record outbound: %v", err)
	}
	if msg.Status != model.StatusSent {
		t.Fatalf("outbound initial status = %s, want sent", msg.Status)
	}
	return msg.ID
}

func statusUpdate(tenantID, providerID, status string) model.StatusUpdate {
	return model.StatusUpdate{
		TenantID:          tenantID,
		ProviderMessageID: providerID,
		Status:            status,
		RecipientID:       testSender,
		Timestamp:         time.Unix(1700000100, 0).UTC(),
	}
}

func TestReconcileOutOfOrderStatuses(t *testing.T) {
	p, mem, tenantID := newTestPipeline(t)
	ctx := context.Background()
	seedOutbound(t, p, mem, tenantID, "wamid.out-1")

	rec := NewReconciler(mem, nil, logger.NewNop())

	// read first, then the stale delivered and sent must be no-ops.
	for _, s := range []string{"read", "delivered", "sent"} {
		if err := rec.Reconcile(ctx, statusUpdate(tenantID, "wamid.out-1", s)); err != nil {
			t.Fatalf("reconcile %s: %v", s, err)
		}
	}

	m, err := mem.FindMessageByProviderID(ctx, "wamid.out-1")
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if m.Status != model.StatusRead {
		t.Fatalf("final status = %s, want read", m.Status)
	}
}

func TestReconcileFailedIsTerminal(t *testing.T) {
	p, mem, tenantID := newTestPipeline(t)
	ctx := context.Background()
	seedOutbound(t, p, mem, tenantID, "wamid.out-2")

	rec := NewReconciler(mem, nil, logger.NewNop())

	for _, s := range []string{"sent", "failed", "delivered"} {
		if err := rec.Reconcile(ctx, statusUpdate(tenantID, "wamid.out-2", s)); err != nil {
			t.Fatalf("reconcile %s: %v", s, err)
		}
	}

	m, err := mem.FindMessageByProviderID(ctx, "wamid.out-2")
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if m.Status != model.StatusFailed {
		t.Fatalf("final status = %s, want failed", m.Status)
	}
}

func TestReconcileUnknownMessageIsSilent(t *testing.T) {
	_, mem, tenantID := newTestPipeline(t)

	rec := NewReconciler(mem, nil, logger.NewNop())
	if err := rec.Reconcile(context.Background(), statusUpdate(tenantID, "wamid.ghost", "delivered")); err != nil {
		t.Fatalf("status for unknown message must not error: %v", err)
	}
}

func TestReconcileUnknownStatusValueIsSilent(t *testing.T) {
	p, mem, tenantID := newTestPipeline(t)
	ctx := context.Background()
	seedOutbound(t, p, mem, tenantID, "wamid.out-3")

	rec := NewReconciler(mem, nil, logger.NewNop())
	if err := rec.Reconcile(ctx, statusUpdate(tenantID, "wamid.out-3", "warehoused")); err != nil {
		t.Fatalf("untracked status value must not error: %v", err)
	}

	m, err := mem.FindMessageByProviderID(ctx, "wamid.out-3")
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if m.Status != model.StatusSent {
		t.Fatalf("status changed by untracked value: %s", m.Status)
	}
}

func TestReconcileToleratesPublisherFailure(t *testing.T) {
	p, mem, tenantID := newTestPipeline(t)
	ctx := context.Background()
	seedOutbound(t, p, mem, tenantID, "wamid.out-5")

	pub := &failingPublisher{}
	rec := NewReconciler(mem, pub, logger.NewNop())

	if err := rec.Reconcile(ctx, statusUpdate(tenantID, "wamid.out-5", "delivered")); err != nil {
		t.Fatalf("publish failure must not fail reconciliation: %v", err)
	}
	if pub.calls == 0 {
		t.Fatal("publisher was never invoked")
	}

	m, err := mem.FindMessageByProviderID(ctx, "wamid.out-5")
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if m.Status != model.StatusDelivered {
		t.Fatalf("status = %s, want delivered applied despite publish failure", m.Status)
	}
}

func TestStatusDeliveryThroughPipeline(t *testing.T) {
	p, mem, tenantID := newTestPipeline(t)
	ctx := context.Background()
	seedOutbound(t, p, mem, tenantID, "wamid.out-4")

	payload := &model.WebhookPayload{
		Object: model.WebhookObject,
		Entry: []model.Entry{{
			ID: "entry-1",
			Changes: []model.Change{{
				Field: "messages",
				Value: model.ChangeValue{
					MessagingProduct: "whatsapp",
					Metadata:         model.ChangeMetadata{PhoneNumberID: testPhoneNumberID},
					Statuses: []model.WebhookStatus{
						{ID: "wamid.out-4", Status: "delivered", Timestamp: "1700000200", RecipientID: testSender},
						{ID: "wamid.out-4", Status: "read", Timestamp: "1700000300", RecipientID: testSender},
					},
				},
			}},
		}},
	}

	if err := p.Process(ctx, payload); err != nil {
		t.Fatalf("status delivery: %v", err)
	}

	m, err := mem.FindMessageByProviderID(ctx, "wamid.out-4")
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if m.Status != model.StatusRead {
		t.Fatalf("final status = %s, want read", m.Status)
	}
}
