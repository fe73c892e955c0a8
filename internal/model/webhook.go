package model

// WebhookObject is the top-level object discriminator the Cloud API sets
// on every webhook delivery for a business account.
const WebhookObject = "whatsapp_business_account"

// WebhookPayload is the envelope WhatsApp posts to the webhook endpoint.
// One delivery batches many business accounts (entries), each with many
// changes. All fields of interest are optional in the wire format, so
// everything below the envelope is pointers or slices.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one batch of messages and/or statuses for one phone number.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue is the payload of a change.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         ChangeMetadata   `json:"metadata"`
	Contacts         []ProfileContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
}

// ChangeMetadata scopes a change to a provider phone number.
type ChangeMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// ProfileContact carries the sender profile the provider attaches to
// inbound messages.
type ProfileContact struct {
	WaID    string         `json:"wa_id"`
	Profile ContactProfile `json:"profile"`
}

// ContactProfile is the sender's display profile.
type ContactProfile struct {
	Name string `json:"name"`
}

// WebhookMessage is one inbound message record. Exactly one of the typed
// bodies is set, matching the Type tag; unknown types carry none.
type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`

	Text     *TextBody  `json:"text,omitempty"`
	Image    *MediaBody `json:"image,omitempty"`
	Video    *MediaBody `json:"video,omitempty"`
	Audio    *MediaBody `json:"audio,omitempty"`
	Document *MediaBody `json:"document,omitempty"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// MediaBody describes a media attachment. The binary itself is fetched
// out of band; the pipeline records only the mime type.
type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
}

// WebhookStatus is one outbound delivery-status record.
type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
