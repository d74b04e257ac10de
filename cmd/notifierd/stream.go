package main

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
	"github.com/iltoga/BusinessSuite-sub003/internal/eventstream"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

// streamReconnectFloor is the minimum wait between connections that ended
// cleanly. Without it a backend that accepts and immediately closes would
// induce a tight redial loop, since a clean close resets the backoff.
const streamReconnectFloor = time.Second

// streamConsumer owns the event stream connection and feeds decoded payloads
// into the push router.
type streamConsumer struct {
	client *eventstream.Client
	router actor.ActorRef[push.RouterRequest, push.RouterResponse]

	// stream overrides the client's Stream call when set.
	stream func(ctx context.Context,
		deliver func(eventstream.Message) error) error

	// reconnectFloor overrides streamReconnectFloor when positive.
	reconnectFloor time.Duration
}

// run keeps the stream connected until ctx is cancelled. Each connection
// attempt gets capped exponential backoff with jitter; a connection that
// ended cleanly resets the backoff by leaving the retry loop.
func (s *streamConsumer) run(ctx context.Context) {
	stream := s.stream
	if stream == nil {
		stream = s.client.Stream
	}
	floor := s.reconnectFloor
	if floor <= 0 {
		floor = streamReconnectFloor
	}

	for {
		err := retry.Do(
			func() error {
				err := stream(ctx, s.deliver)
				if err == nil {
					// Clean end of stream. Succeed here so
					// the outer loop reconnects with a
					// fresh backoff schedule.
					return nil
				}
				if ctx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				if errors.Is(err, eventstream.ErrSessionExpired) {
					// Nothing to do but wait for a surface
					// to hand over a fresh token.
					log.Warn("Session expired, waiting " +
						"before reconnecting")
				}
				return err
			},
			retry.Attempts(0),
			retry.Delay(time.Second),
			retry.MaxDelay(2*time.Minute),
			retry.MaxJitter(10*time.Second),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				log.Infof("Reconnecting event stream "+
					"(attempt %d): %v", n, err)
			}),
		)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Errorf("Event stream loop error: %v", err)
		}

		log.Debug("Event stream ended, reconnecting")

		select {
		case <-time.After(floor):
		case <-ctx.Done():
			return
		}
	}
}

// deliver hands one decoded stream frame to the router. Payloads that are
// valid JSON but not a payload shape are dropped with a log line; they must
// not kill the stream.
func (s *streamConsumer) deliver(msg eventstream.Message) error {
	payload, err := push.DecodePayload(msg.Data)
	if err != nil {
		log.Warnf("Dropping undecodable %s frame: %v",
			msg.EventType, err)
		return nil
	}

	s.router.Tell(context.Background(), push.DeliverMsg{Payload: payload})
	return nil
}
