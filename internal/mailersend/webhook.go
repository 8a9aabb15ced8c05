package mailersend

// Activity types MailerSend posts that the relay acts on.
const (
	ActivitySoftBounced   = "activity.soft_bounced"
	ActivityHardBounced   = "activity.hard_bounced"
	ActivitySpamComplaint = "activity.spam_complaint"
)

// EventType is the relay's classification of an activity webhook.
type EventType string

const (
	EventHardBounce    EventType = "hard_bounce"
	EventSoftBounce    EventType = "soft_bounce"
	EventSpamComplaint EventType = "spam_complaint"
	EventOther         EventType = "other"
)

// WebhookRecipient is the recipient object nested in an activity.
type WebhookRecipient struct {
	Object    string `json:"object"`
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// WebhookEmail is the email object nested in an activity.
type WebhookEmail struct {
	Object    string           `json:"object"`
	ID        string           `json:"id"`
	CreatedAt string           `json:"created_at"`
	From      string           `json:"from"`
	Subject   string           `json:"subject"`
	Status    string           `json:"status"`
	Tags      []string         `json:"tags"`
	Recipient WebhookRecipient `json:"recipient"`
}

// WebhookData is the activity object.
type WebhookData struct {
	Object    string       `json:"object"`
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	CreatedAt string       `json:"created_at"`
	Email     WebhookEmail `json:"email"`
}

// WebhookRequest is the body MailerSend posts to an activity webhook.
type WebhookRequest struct {
	Type      string      `json:"type"`
	DomainID  string      `json:"domain_id"`
	CreatedAt string      `json:"created_at"`
	WebhookID string      `json:"webhook_id"`
	URL       string      `json:"url"`
	Data      WebhookData `json:"data"`
}

// DeliveryEvent is the provider-neutral view of an activity webhook.
type DeliveryEvent struct {
	Type              EventType
	RawType           string
	RecipientEmail    string
	ProviderMessageID string
	Tags              []string
}

// ActivityType returns the top-level type, falling back to data.type.
func (w WebhookRequest) ActivityType() string {
	if w.Type != "" {
		return w.Type
	}
	return w.Data.Type
}

// DeliveryEvent classifies the webhook.
func (w WebhookRequest) DeliveryEvent() DeliveryEvent {
	raw := w.ActivityType()
	return DeliveryEvent{
		Type:              classify(raw),
		RawType:           raw,
		RecipientEmail:    w.Data.Email.Recipient.Email,
		ProviderMessageID: w.Data.Email.ID,
		Tags:              w.Data.Email.Tags,
	}
}

func classify(activity string) EventType {
	switch activity {
	case ActivityHardBounced:
		return EventHardBounce
	case ActivitySoftBounced:
		return EventSoftBounce
	case ActivitySpamComplaint:
		return EventSpamComplaint
	default:
		return EventOther
	}
}
