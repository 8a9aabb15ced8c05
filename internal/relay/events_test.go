package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listmonk-relay/internal/listmonk"
	"github.com/ignite/listmonk-relay/internal/mailersend"
)

type fakeListManager struct {
	bounces     []listmonk.Bounce
	blocklisted []mailersend.Address
	err         error
}

func (f *fakeListManager) RecordBounce(_ context.Context, b listmonk.Bounce) error {
	if f.err != nil {
		return f.err
	}
	f.bounces = append(f.bounces, b)
	return nil
}

func (f *fakeListManager) BlocklistByEmail(_ context.Context, addr mailersend.Address) error {
	if f.err != nil {
		return f.err
	}
	f.blocklisted = append(f.blocklisted, addr)
	return nil
}

type fakeJournal struct {
	records []EventRecord
	err     error
}

func (j *fakeJournal) Record(_ context.Context, rec EventRecord) error {
	j.records = append(j.records, rec)
	return j.err
}

func TestRouteHardBounceWithCampaign(t *testing.T) {
	lists := &fakeListManager{}
	journal := &fakeJournal{}
	r := NewEventRouter(lists, journal)

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:              mailersend.EventHardBounce,
		RawType:           mailersend.ActivityHardBounced,
		RecipientEmail:    "reader@example.com",
		ProviderMessageID: "msg-1",
		Tags:              []string{"sale", "campaign:789"},
	})
	require.NoError(t, err)

	require.Len(t, lists.bounces, 1)
	assert.Equal(t, listmonk.Bounce{
		Email:        "reader@example.com",
		CampaignUUID: "789",
		Type:         listmonk.BounceHard,
		Meta:         "msg-1",
	}, lists.bounces[0])

	require.Len(t, journal.records, 1)
	assert.Equal(t, OutcomeForwarded, journal.records[0].Outcome)
	assert.Equal(t, "789", journal.records[0].CampaignUUID)
}

func TestRouteSoftBounceWithoutTags(t *testing.T) {
	lists := &fakeListManager{}
	r := NewEventRouter(lists, nil)

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:           mailersend.EventSoftBounce,
		RecipientEmail: "reader@example.com",
	})
	require.NoError(t, err)

	require.Len(t, lists.bounces, 1)
	assert.Equal(t, listmonk.BounceSoft, lists.bounces[0].Type)
	assert.Empty(t, lists.bounces[0].CampaignUUID)
}

func TestRouteSpamComplaint(t *testing.T) {
	lists := &fakeListManager{}
	r := NewEventRouter(lists, nil)

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:           mailersend.EventSpamComplaint,
		RecipientEmail: "angry@example.com",
	})
	require.NoError(t, err)

	assert.Empty(t, lists.bounces)
	assert.Equal(t, []mailersend.Address{{Email: "angry@example.com"}}, lists.blocklisted)
}

func TestRouteSpamComplaintInvalidRecipient(t *testing.T) {
	lists := &fakeListManager{}
	journal := &fakeJournal{}
	r := NewEventRouter(lists, journal)

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:           mailersend.EventSpamComplaint,
		RecipientEmail: "garbage",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, mailersend.ErrInvalidAddress)
	assert.Empty(t, lists.blocklisted)
	require.Len(t, journal.records, 1)
	assert.Equal(t, OutcomeFailed, journal.records[0].Outcome)
}

func TestRouteOtherEventIsIgnored(t *testing.T) {
	lists := &fakeListManager{}
	journal := &fakeJournal{}
	r := NewEventRouter(lists, journal)

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:    mailersend.EventOther,
		RawType: "activity.opened",
	})
	require.NoError(t, err)
	assert.Empty(t, lists.bounces)
	assert.Empty(t, lists.blocklisted)
	require.Len(t, journal.records, 1)
	assert.Equal(t, OutcomeIgnored, journal.records[0].Outcome)
}

func TestRouteListManagerFailure(t *testing.T) {
	lists := &fakeListManager{err: fmt.Errorf("POST /webhooks/bounce: %w", listmonk.ErrListManagerRequestFailed)}
	r := NewEventRouter(lists, nil)

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:           mailersend.EventHardBounce,
		RecipientEmail: "reader@example.com",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, listmonk.ErrListManagerRequestFailed)
}

func TestRouteJournalFailureIsNotFatal(t *testing.T) {
	r := NewEventRouter(&fakeListManager{}, &fakeJournal{err: errors.New("db down")})

	err := r.Route(context.Background(), mailersend.DeliveryEvent{
		Type:           mailersend.EventHardBounce,
		RecipientEmail: "reader@example.com",
	})
	assert.NoError(t, err)
}
