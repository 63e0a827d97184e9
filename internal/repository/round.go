package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/kinarow/internal/entity"
)

var ErrRoundNotFound = errors.New("round not found")

// roundTTL keeps an abandoned snapshot from outliving a crashed arbiter.
const roundTTL = 24 * time.Hour

type RoundRepository interface {
	CreateOrUpdate(ctx context.Context, round *entity.RoundSnapshot) error
	GetByID(ctx context.Context, id string) (*entity.RoundSnapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbRound struct {
	client *redis.Client
}

func NewRoundRepository(client *redis.Client) RoundRepository {
	return &dbRound{
		client: client,
	}
}

func (that *dbRound) CreateOrUpdate(ctx context.Context, round *entity.RoundSnapshot) error {
	roundJSON, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("could not marshal round: %w", err)
	}

	roundKey := "round:" + round.ID
	err = that.client.Set(ctx, roundKey, roundJSON, roundTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set round: %w", err)
	}

	return nil
}

func (that *dbRound) GetByID(ctx context.Context, id string) (*entity.RoundSnapshot, error) {
	roundKey := "round:" + id

	response, err := that.client.Get(ctx, roundKey).Result()

	if errors.Is(err, redis.Nil) {
		return &entity.RoundSnapshot{}, ErrRoundNotFound
	}

	if err != nil {
		return &entity.RoundSnapshot{}, fmt.Errorf("%w by id", err)
	}

	var round entity.RoundSnapshot
	if err = json.Unmarshal([]byte(response), &round); err != nil {
		return &entity.RoundSnapshot{}, fmt.Errorf("failed to unmarshal round: %w", err)
	}

	return &round, nil
}

func (that *dbRound) DeleteByID(ctx context.Context, id string) error {
	roundKey := "round:" + id

	deleted, err := that.client.Del(ctx, roundKey).Result()
	if err != nil {
		return fmt.Errorf("failed to delete round by ID: %w", err)
	}

	if deleted == 0 {
		return ErrRoundNotFound
	}

	return nil
}
