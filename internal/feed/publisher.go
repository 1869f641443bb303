// internal/feed/publisher.go
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
)

// Publisher fans row changes out to Redis channels, one per filter column.
type Publisher struct {
	client  redis.UniversalClient
	columns []string
	log     logger.Logger
}

func NewPublisher(client redis.UniversalClient, log logger.Logger, columns ...string) *Publisher {
	if len(columns) == 0 {
		columns = []string{"user_id"}
	}
	return &Publisher{
		client:  client,
		columns: columns,
		log:     log.WithFields(map[string]interface{}{"component": "feed-publisher"}),
	}
}

// PublishRow marshals row and publishes it as one event.
func (p *Publisher) PublishRow(ctx context.Context, table string, typ EventType, row interface{}) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal %s row: %w", table, err)
	}
	ev := Event{Type: typ, Table: table}
	if typ == EventDelete {
		ev.Old = raw
	} else {
		ev.New = raw
	}
	return p.Publish(ctx, ev)
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var firstErr error
	for _, col := range p.columns {
		v, ok := columnValue(ev.Row(), col)
		if !ok {
			continue
		}
		channel := ChannelName(ev.Table, col, v)
		if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
			metrics.FeedEventsPublished.WithLabelValues(ev.Table, string(ev.Type), "failed").Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("publish to %s: %w", channel, err)
			}
			continue
		}
		metrics.FeedEventsPublished.WithLabelValues(ev.Table, string(ev.Type), "published").Inc()
	}
	return firstErr
}
