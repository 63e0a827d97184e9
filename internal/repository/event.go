package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/kinarow/internal/entity"
)

const DefaultEventChannel = "kinarow:events"

type EventRepository interface {
	Publish(ctx context.Context, event entity.Event) error
}

type dbEvent struct {
	client  *redis.Client
	channel string
}

func NewEventRepository(client *redis.Client, channel string) EventRepository {
	if channel == "" {
		channel = DefaultEventChannel
	}

	return &dbEvent{
		client:  client,
		channel: channel,
	}
}

func (that *dbEvent) Publish(ctx context.Context, event entity.Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, that.channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
