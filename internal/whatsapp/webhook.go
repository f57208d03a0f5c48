package whatsapp

// WebhookPayload is the envelope the provider POSTs to the webhook
// endpoint. Only whatsapp_business_account objects with field "messages"
// carry anything we act on.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WebhookMetadata   `json:"metadata"`
	Statuses         []StatusEvent     `json:"statuses,omitempty"`
	Messages         []InboundMessage  `json:"messages,omitempty"`
	Contacts         []InboundContact  `json:"contacts,omitempty"`
}

// WebhookMetadata identifies which provisioned phone number the events
// belong to. PhoneNumberID is the tenant routing key.
type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// StatusEvent reports a delivery state change for a previously sent message.
type StatusEvent struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// InboundMessage is one message a contact sent to the business number.
type InboundMessage struct {
	ID        string        `json:"id"`
	From      string        `json:"from"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *InboundText  `json:"text,omitempty"`
	Image     *InboundMedia `json:"image,omitempty"`
	Video     *InboundMedia `json:"video,omitempty"`
	Document  *InboundMedia `json:"document,omitempty"`
	Audio     *InboundMedia `json:"audio,omitempty"`
}

type InboundText struct {
	Body string `json:"body"`
}

type InboundMedia struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
	URL  string `json:"url,omitempty"`
}

// MediaURL returns whichever link field the provider populated.
func (m *InboundMedia) MediaURL() string {
	if m == nil {
		return ""
	}
	if m.Link != "" {
		return m.Link
	}
	return m.URL
}

// InboundContact is the sender profile attached to inbound messages.
type InboundContact struct {
	WaID    string         `json:"wa_id"`
	Profile InboundProfile `json:"profile"`
}

type InboundProfile struct {
	Name string `json:"name"`
}

// Media returns the media attachment of the message, if any.
func (m *InboundMessage) Media() *InboundMedia {
	switch {
	case m.Image != nil:
		return m.Image
	case m.Video != nil:
		return m.Video
	case m.Document != nil:
		return m.Document
	case m.Audio != nil:
		return m.Audio
	}
	return nil
}
