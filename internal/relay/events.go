package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/listmonk-relay/internal/listmonk"
	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// ListManager is the part of listmonk the event router writes to.
type ListManager interface {
	RecordBounce(ctx context.Context, bounce listmonk.Bounce) error
	BlocklistByEmail(ctx context.Context, addr mailersend.Address) error
}

// Outcome of routing one delivery event.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// EventRecord is one routed event as written to the journal.
type EventRecord struct {
	Event        mailersend.DeliveryEvent
	CampaignUUID string
	Outcome      Outcome
	Error        string
	ReceivedAt   time.Time
}

// EventJournal persists routed events.
type EventJournal interface {
	Record(ctx context.Context, rec EventRecord) error
}

// EventRouter forwards bounces and spam complaints to listmonk. It keeps no
// state between events.
type EventRouter struct {
	lists   ListManager
	journal EventJournal
}

// NewEventRouter creates a router. journal may be nil.
func NewEventRouter(lists ListManager, journal EventJournal) *EventRouter {
	return &EventRouter{lists: lists, journal: journal}
}

// Route applies one delivery event. Unrecognized events succeed without
// side effects.
func (r *EventRouter) Route(ctx context.Context, ev mailersend.DeliveryEvent) error {
	campaignUUID, _ := mailersend.CampaignFromTags(ev.Tags)

	outcome, err := r.route(ctx, ev, campaignUUID)

	rec := EventRecord{
		Event:        ev,
		CampaignUUID: campaignUUID,
		Outcome:      outcome,
		ReceivedAt:   time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		logger.Error("delivery event not applied", "type", ev.RawType, "recipient", ev.RecipientEmail, "error", err)
	}
	if r.journal != nil {
		if jerr := r.journal.Record(ctx, rec); jerr != nil {
			logger.Warn("failed to journal delivery event", "type", ev.RawType, "error", jerr)
		}
	}
	return err
}

func (r *EventRouter) route(ctx context.Context, ev mailersend.DeliveryEvent, campaignUUID string) (Outcome, error) {
	switch ev.Type {
	case mailersend.EventHardBounce, mailersend.EventSoftBounce:
		bounceType := listmonk.BounceSoft
		if ev.Type == mailersend.EventHardBounce {
			bounceType = listmonk.BounceHard
		}
		err := r.lists.RecordBounce(ctx, listmonk.Bounce{
			Email:        ev.RecipientEmail,
			CampaignUUID: campaignUUID,
			Type:         bounceType,
			Meta:         ev.ProviderMessageID,
		})
		if err != nil {
			return OutcomeFailed, fmt.Errorf("recording %s bounce: %w", bounceType, err)
		}
		logger.Info("bounce recorded", "recipient", ev.RecipientEmail, "type", string(bounceType), "campaign_uuid", campaignUUID)
		return OutcomeForwarded, nil

	case mailersend.EventSpamComplaint:
		addr, err := mailersend.ParseAddress(ev.RecipientEmail)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("spam complaint recipient: %w", err)
		}
		if err := r.lists.BlocklistByEmail(ctx, addr); err != nil {
			return OutcomeFailed, fmt.Errorf("blocklisting complainer: %w", err)
		}
		logger.Info("spam complainer blocklisted", "recipient", addr.Email)
		return OutcomeForwarded, nil

	default:
		logger.Debug("ignoring delivery event", "type", ev.RawType)
		return OutcomeIgnored, nil
	}
}
