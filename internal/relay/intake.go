// Package relay turns listmonk campaign requests into provider emails and
// routes provider delivery events back into listmonk.
package relay

import (
	"fmt"

	"github.com/ignite/listmonk-relay/internal/listmonk"
	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// Enqueuer accepts emails for a later dispatch cycle.
type Enqueuer interface {
	EnqueueAll(emails []mailersend.Email)
}

// Intake converts messenger requests into emails and buffers them.
type Intake struct {
	queue Enqueuer
}

// NewIntake creates an intake feeding queue.
func NewIntake(queue Enqueuer) *Intake {
	return &Intake{queue: queue}
}

// Accept builds one email per enabled recipient and enqueues them in a
// single step. An unparsable sender or Reply-To rejects the whole request
// before anything is enqueued.
func (i *Intake) Accept(req listmonk.MessengerRequest) (int, error) {
	emails, err := BuildEmails(req)
	if err != nil {
		return 0, err
	}

	i.queue.EnqueueAll(emails)
	logger.Info("campaign messages buffered",
		"campaign_uuid", req.Campaign.UUID,
		"recipients", len(req.Recipients),
		"buffered", len(emails))
	return len(emails), nil
}

// BuildEmails maps a messenger request to provider emails.
func BuildEmails(req listmonk.MessengerRequest) ([]mailersend.Email, error) {
	from, err := mailersend.ParseAddress(req.Campaign.FromEmail)
	if err != nil {
		return nil, fmt.Errorf("campaign from address: %w", err)
	}

	var replyTo *mailersend.Address
	if raw, ok := req.Campaign.Header("Reply-To"); ok && raw != "" {
		addr, err := mailersend.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("campaign reply-to address: %w", err)
		}
		replyTo = &addr
	}

	tags := make([]string, 0, len(req.Campaign.Tags)+1)
	tags = append(tags, req.Campaign.Tags...)
	tags = append(tags, mailersend.CampaignTag(req.Campaign.UUID))

	emails := make([]mailersend.Email, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		if !r.Enabled() {
			continue
		}
		email := mailersend.Email{
			From:    from,
			To:      []mailersend.Address{mailersend.AddressFromParts(r.Name, r.Email)},
			ReplyTo: replyTo,
			Subject: req.Subject,
			Tags:    tags,
		}
		if req.ContentType == listmonk.ContentTypePlain {
			email.Text = req.Body
		} else {
			email.HTML = req.Body
		}
		emails = append(emails, email)
	}
	return emails, nil
}
