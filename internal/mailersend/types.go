// Package mailersend talks to the MailerSend bulk email API and decodes the
// activity webhooks it posts back.
package mailersend

import "strings"

// CampaignTagPrefix marks the correlation tag carrying the listmonk campaign
// uuid. MailerSend echoes tags back on activity webhooks.
const CampaignTagPrefix = "campaign:"

// Email is one record of a bulk-email request.
type Email struct {
	From    Address   `json:"from"`
	To      []Address `json:"to"`
	ReplyTo *Address  `json:"reply_to,omitempty"`
	Subject string    `json:"subject"`
	Text    string    `json:"text,omitempty"`
	HTML    string    `json:"html,omitempty"`
	Tags    []string  `json:"tags"`
}

// CampaignTag builds the correlation tag for a campaign uuid.
func CampaignTag(campaignUUID string) string {
	return CampaignTagPrefix + campaignUUID
}

// CampaignFromTags returns the campaign uuid carried by the first
// "campaign:" tag, if any.
func CampaignFromTags(tags []string) (string, bool) {
	for _, tag := range tags {
		if id, ok := strings.CutPrefix(tag, CampaignTagPrefix); ok {
			return id, true
		}
	}
	return "", false
}

// BulkResponse is the body MailerSend returns for an accepted bulk request.
type BulkResponse struct {
	Message     string `json:"message"`
	BulkEmailID string `json:"bulk_email_id"`
}
