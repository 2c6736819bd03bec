package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardRepository feeds the externally-owned leaderboard aggregate on
// test completion. All writes are best-effort; the lifecycle service logs and
// continues when they fail.
type LeaderboardRepository interface {
	RecordCompletion(ctx context.Context, userID uint, score float64, totalCorrect int, completedAt time.Time) error
}

type leaderboardRepository struct {
	client *redis.Client
}

func NewLeaderboardRepository(client *redis.Client) LeaderboardRepository {
	return &leaderboardRepository{client: client}
}

const leaderboardRankKey = "leaderboard:by_avg"

func userStatsKey(userID uint) string {
	return fmt.Sprintf("leaderboard:user:%d", userID)
}

// RecordCompletion folds one completed test into the user's running average
// and re-ranks them in the by-average sorted set.
func (r *leaderboardRepository) RecordCompletion(ctx context.Context, userID uint, score float64, totalCorrect int, completedAt time.Time) error {
	key := userStatsKey(userID)

	stats, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}

	tests, _ := strconv.Atoi(stats["tests_completed"])
	avg, _ := strconv.ParseFloat(stats["avg_score"], 64)
	correct, _ := strconv.Atoi(stats["total_correct"])

	newAvg := (avg*float64(tests) + score) / float64(tests+1)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"tests_completed": tests + 1,
		"avg_score":       newAvg,
		"total_correct":   correct + totalCorrect,
		"last_active":     completedAt.UTC().Format("2006-01-02"),
	})
	pipe.ZAdd(ctx, leaderboardRankKey, redis.Z{Score: newAvg, Member: strconv.FormatUint(uint64(userID), 10)})
	_, err = pipe.Exec(ctx)
	return err
}
