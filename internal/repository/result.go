package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

const (
	resultsKey = "results"
	statsKey   = "stats"

	statsFieldX    = "x"
	statsFieldO    = "o"
	statsFieldDraw = "draw"

	DefaultHistoryLimit = 100
)

type ResultRepository interface {
	Record(ctx context.Context, result entity.GameResult) error
	Recent(ctx context.Context, n int64) ([]entity.GameResult, error)
	Wins(ctx context.Context) (entity.WinStats, error)
}

type dbResult struct {
	client       *redis.Client
	historyLimit int64
}

func NewResultRepository(client *redis.Client, historyLimit int64) ResultRepository {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	return &dbResult{
		client:       client,
		historyLimit: historyLimit,
	}
}

// Record - prepends the result to the history list and bumps the outcome counter in one transaction.
func (that *dbResult) Record(ctx context.Context, result entity.GameResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal game result: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, resultsKey, resultJSON)
		pipe.LTrim(ctx, resultsKey, 0, that.historyLimit-1)
		pipe.HIncrBy(ctx, statsKey, statsField(result), 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record game result: %w", err)
	}

	return nil
}

// Recent - the n most recent results, newest first.
func (that *dbResult) Recent(ctx context.Context, n int64) ([]entity.GameResult, error) {
	if n <= 0 {
		return []entity.GameResult{}, nil
	}

	response, err := that.client.LRange(ctx, resultsKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent results: %w", err)
	}

	results := make([]entity.GameResult, 0, len(response))
	for _, raw := range response {
		var result entity.GameResult
		if err = json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game result: %w", err)
		}
		results = append(results, result)
	}

	return results, nil
}

func (that *dbResult) Wins(ctx context.Context) (entity.WinStats, error) {
	response, err := that.client.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return entity.WinStats{}, fmt.Errorf("failed to get win stats: %w", err)
	}

	var stats entity.WinStats
	for field, target := range map[string]*int64{
		statsFieldX:    &stats.X,
		statsFieldO:    &stats.O,
		statsFieldDraw: &stats.Draw,
	} {
		raw, ok := response[field]
		if !ok {
			continue
		}

		if *target, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return entity.WinStats{}, fmt.Errorf("invalid %s counter: %w", field, err)
		}
	}

	return stats, nil
}

func statsField(result entity.GameResult) string {
	switch result.Winner {
	case entity.MarkX:
		return statsFieldX
	case entity.MarkO:
		return statsFieldO
	default:
		return statsFieldDraw
	}
}
