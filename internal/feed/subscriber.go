// internal/feed/subscriber.go
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
)

type Subscriber struct {
	client redis.UniversalClient
	log    logger.Logger
}

func NewSubscriber(client redis.UniversalClient, log logger.Logger) *Subscriber {
	return &Subscriber{
		client: client,
		log:    log.WithFields(map[string]interface{}{"component": "feed-subscriber"}),
	}
}

// Subscribe returns once Redis has confirmed the subscription. handler runs
// on a dedicated goroutine, one event at a time, until Unsubscribe.
func (s *Subscriber) Subscribe(ctx context.Context, name string, filter Filter, handler Handler) (Subscription, error) {
	channel := filter.Channel()
	ps := s.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, apperrors.NewFeedSubscribeFailedError(channel, err)
	}

	sub := &redisSubscription{
		pubsub: ps,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	log := s.log.WithFields(map[string]interface{}{"subscription": name, "channel": channel})
	go sub.run(filter, handler, log)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
	stop   chan struct{}
	done   chan struct{}
}

func (r *redisSubscription) run(filter Filter, handler Handler, log logger.Logger) {
	defer close(r.done)
	msgs := r.pubsub.Channel()
	for {
		select {
		case <-r.stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("dropping undecodable feed event", map[string]interface{}{"error": err})
				continue
			}
			if !filter.Matches(ev) {
				continue
			}
			handler(ev)
		}
	}
}

// Unsubscribe is idempotent and waits for the handler goroutine to exit,
// so it must not be called from inside the handler.
func (r *redisSubscription) Unsubscribe() {
	r.once.Do(func() {
		close(r.stop)
		_ = r.pubsub.Close()
	})
	<-r.done
}
