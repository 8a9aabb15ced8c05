// Package listmonk holds the listmonk messenger payload and a client for the
// listmonk endpoints the relay calls back into.
package listmonk

import "strings"

// RecipientStatusEnabled is the only subscriber status that receives mail.
const RecipientStatusEnabled = "enabled"

// ContentTypePlain marks a campaign body that is plain text, not HTML.
const ContentTypePlain = "plain"

// Recipient is one subscriber in a messenger request.
type Recipient struct {
	UUID    string         `json:"uuid"`
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	Attribs map[string]any `json:"attribs,omitempty"`
	Status  string         `json:"status"`
}

// Enabled reports whether the subscriber may be mailed.
func (r Recipient) Enabled() bool {
	return r.Status == RecipientStatusEnabled
}

// Campaign is the campaign block of a messenger request.
type Campaign struct {
	UUID      string              `json:"uuid"`
	Name      string              `json:"name"`
	FromEmail string              `json:"from_email"`
	Headers   []map[string]string `json:"headers"`
	Tags      []string            `json:"tags"`
}

// Header returns the first value of a campaign header, matched
// case-insensitively.
func (c Campaign) Header(name string) (string, bool) {
	for _, h := range c.Headers {
		for k, v := range h {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return "", false
}

// MessengerRequest is what listmonk posts to a custom messenger.
type MessengerRequest struct {
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	ContentType string      `json:"content_type"`
	Recipients  []Recipient `json:"recipients"`
	Campaign    Campaign    `json:"campaign"`
}

// BounceType is listmonk's bounce severity.
type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

// Bounce is the body of POST /webhooks/bounce.
type Bounce struct {
	Email        string     `json:"email"`
	CampaignUUID string     `json:"campaign_uuid,omitempty"`
	Source       string     `json:"source"`
	Type         BounceType `json:"type"`
	Meta         string     `json:"meta,omitempty"`
}

// QueryBlocklistRequest is the body of PUT /api/subscribers/query/blocklist.
type QueryBlocklistRequest struct {
	Query string `json:"query"`
}
