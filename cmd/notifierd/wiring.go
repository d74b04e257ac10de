package main

import (
	"context"
	"database/sql"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
	"github.com/iltoga/BusinessSuite-sub003/internal/db"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

// outboxAcker delivers acknowledgments to the backend, falling back to the
// persistent outbox when the backend is unreachable. The flusher picks the
// queued entries up later.
type outboxAcker struct {
	client  *api.Client
	store   *db.Store
	flusher *db.Flusher
}

func (a *outboxAcker) AckDelivery(ctx context.Context, id int64,
	channel api.Channel) error {

	err := a.client.AckDelivery(ctx, id, channel)
	if err == nil {
		return nil
	}

	log.Debugf("Direct ack for reminder %d failed, queueing: %v", id, err)

	_, qErr := a.store.EnqueueAck(
		ctx, id, string(channel), a.client.DeviceLabel(),
	)
	if qErr != nil {
		log.Errorf("Unable to queue ack for reminder %d: %v", id, qErr)
		return err
	}

	return nil
}

// sendQueuedAck is the flusher's send callback: queued entries go straight
// to the backend, errors bubble up so the flusher reschedules.
func (a *outboxAcker) sendQueuedAck(ctx context.Context,
	ack db.PendingAck) error {

	return a.client.AckDelivery(
		ctx, ack.ReminderID, api.Channel(ack.Channel),
	)
}

// deliveryJournal adapts the store to the router's journal port. Raised
// notifications always go out on the system channel.
type deliveryJournal struct {
	store *db.Store
}

func (j *deliveryJournal) RecordDelivery(ctx context.Context, tag string,
	reminderID int64, title string) error {

	rec := db.DeliveryRecord{
		Tag:     tag,
		Title:   title,
		Channel: string(api.ChannelSystem),
	}
	if reminderID != 0 {
		rec.ReminderID = sql.NullInt64{Int64: reminderID, Valid: true}
	}

	return j.store.RecordDelivery(ctx, rec)
}

// routerControl forwards surface handshakes into the push router actor.
type routerControl struct {
	router actor.ActorRef[push.RouterRequest, push.RouterResponse]
}

func (c *routerControl) OnProviderConfig(ctx context.Context,
	cfg push.ProviderConfig) {

	c.router.Tell(ctx, push.ConfigureMsg{Config: cfg})
}

func (c *routerControl) OnAuthToken(ctx context.Context, token string) {
	c.router.Tell(ctx, push.SetAuthTokenMsg{Token: token})
}
