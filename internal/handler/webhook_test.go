package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/service"
	"github.com/wavedesk/messaging-platform/internal/store"
	"github.com/wavedesk/messaging-platform/pkg/logger"
)

func newTestHandler(t *testing.T) (*WebhookHandler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.AddTenant(model.Tenant{
		Name:                  "Acme Foods",
		WhatsAppPhoneNumberID: "15550001111",
	})
	pipeline := service.NewPipeline(mem, nil, logger.NewNop())
	return NewWebhookHandler(pipeline, logger.NewNop()), mem
}

func TestVerifyEchoesChallenge(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=X&hub.challenge=ABC123", nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "ABC123" {
		t.Fatalf("body = %q, want challenge echoed verbatim", body)
	}
}

func TestVerifyRejectsIncompleteHandshake(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		name  string
		query string
	}{
		{"missing challenge", "hub.mode=subscribe&hub.verify_token=X"},
		{"missing token", "hub.mode=subscribe&hub.challenge=ABC123"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=X&hub.challenge=ABC123"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?"+tc.query, nil)
			rec := httptest.NewRecorder()

			h.Verify(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Fatalf("expected empty body, got %q", rec.Body.String())
			}
		})
	}
}

// webhookRouter mounts the handler the way cmd/api does, so routing
// behavior (method dispatch included) is what production sees.
func webhookRouter(h *WebhookHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/webhook/whatsapp", func(r chi.Router) {
		r.Get("/", h.Verify)
		r.Post("/", h.Receive)
		r.Options("/", h.Preflight)
	})
	return r
}

func TestBareOptionsReturns200(t *testing.T) {
	h, _ := newTestHandler(t)
	router := webhookRouter(h)

	// No preflight headers at all; the route itself must answer 200.
	req := httptest.NewRequest(http.MethodOptions, "/webhook/whatsapp", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestReceiveProcessesDelivery(t *testing.T) {
	h, mem := newTestHandler(t)

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "15550001111", "phone_number_id": "15550001111"},
					"contacts": [{"wa_id": "15557778888", "profile": {"name": "Jordan"}}],
					"messages": [{
						"from": "15557778888",
						"id": "wamid.h1",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": "hello there"}
					}]
				}
			}]
		}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["success"] {
		t.Fatalf("response = %v, want success true", resp)
	}

	m, err := mem.FindMessageByProviderID(req.Context(), "wamid.h1")
	if err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if m.Content != "hello there" {
		t.Fatalf("content = %q", m.Content)
	}
}

// deadPublisher fails every fan-out publish.
type deadPublisher struct{}

func (deadPublisher) PublishInboxEvent(ctx context.Context, ev *model.InboxEvent) error {
	return errors.New("nats: connection closed")
}

func TestReceiveSucceedsWhenFanoutIsDown(t *testing.T) {
	mem := store.NewMemory()
	mem.AddTenant(model.Tenant{
		Name:                  "Acme Foods",
		WhatsAppPhoneNumberID: "15550001111",
	})
	pipeline := service.NewPipeline(mem, deadPublisher{}, logger.NewNop())
	h := NewWebhookHandler(pipeline, logger.NewNop())

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "15550001111", "phone_number_id": "15550001111"},
					"messages": [{
						"from": "15557778888",
						"id": "wamid.deadbroker",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": "hi"}
					}]
				}
			}]
		}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when only fan-out fails", rec.Code)
	}
	if _, err := mem.FindMessageByProviderID(req.Context(), "wamid.deadbroker"); err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
}

func TestReceiveRejectsWrongObject(t *testing.T) {
	h, mem := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp",
		strings.NewReader(`{"object":"not_whatsapp"}`))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	contacts, convos, msgs := mem.Counts()
	if contacts != 0 || convos != 0 || msgs != 0 {
		t.Fatalf("rejected delivery performed writes: %d contacts, %d conversations, %d messages", contacts, convos, msgs)
	}
}

func TestReceiveRejectsUnparseableBody(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp",
		strings.NewReader(`{"object": `))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatal("expected an error message in the response")
	}
}

func TestReceiveUnknownTenantStillSucceeds(t *testing.T) {
	h, mem := newTestHandler(t)

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "19990000000", "phone_number_id": "19990000000"},
					"messages": [{
						"from": "15557778888",
						"id": "wamid.unknown",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": "hi"}
					}]
				}
			}]
		}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	contacts, convos, msgs := mem.Counts()
	if contacts != 0 || convos != 0 || msgs != 0 {
		t.Fatalf("unknown tenant performed writes: %d contacts, %d conversations, %d messages", contacts, convos, msgs)
	}
}
