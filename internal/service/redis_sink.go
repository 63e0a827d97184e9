package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/rocketscienceinc/kinarow/internal/repository"
)

type eventRepo interface {
	Publish(ctx context.Context, event entity.Event) error
}

type roundRepo interface {
	CreateOrUpdate(ctx context.Context, round *entity.RoundSnapshot) error
	DeleteByID(ctx context.Context, id string) error
}

type roundSource interface {
	Snapshot() entity.RoundSnapshot
}

// RedisSink publishes events on the Redis bus and keeps the live round
// snapshot under "round:<id>" until the round is left.
type RedisSink struct {
	eventRepo eventRepo
	roundRepo roundRepo
	source    roundSource
}

func NewRedisSink(eventRepo eventRepo, roundRepo roundRepo, source roundSource) *RedisSink {
	return &RedisSink{
		eventRepo: eventRepo,
		roundRepo: roundRepo,
		source:    source,
	}
}

func (that *RedisSink) Notify(ctx context.Context, event entity.Event) error {
	var errs []error

	if err := that.eventRepo.Publish(ctx, event); err != nil {
		errs = append(errs, fmt.Errorf("failed publish event: %w", err))
	}

	if event.Type == entity.EventRoundLeft {
		err := that.roundRepo.DeleteByID(ctx, event.RoundID)
		if err != nil && !errors.Is(err, repository.ErrRoundNotFound) {
			errs = append(errs, fmt.Errorf("failed delete round: %w", err))
		}

		return errors.Join(errs...)
	}

	snapshot := that.source.Snapshot()
	if err := that.roundRepo.CreateOrUpdate(ctx, &snapshot); err != nil {
		errs = append(errs, fmt.Errorf("failed update round: %w", err))
	}

	return errors.Join(errs...)
}
