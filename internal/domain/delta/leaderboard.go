package delta

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dsatschool/delta-api/internal/pkg/logger"
	"github.com/dsatschool/delta-api/internal/pkg/metrics"
)

const leaderboardKeyPrefix = "delta:leaderboard:"

// LeaderboardEntry is one ranked row as seen by the requesting user
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserEmail      string `json:"user_email"`
	TotalEarned    string `json:"total_earned"`
	CurrentBalance string `json:"current_balance"`
	IsCurrentUser  bool   `json:"is_current_user"`
}

// ClampBoardSize maps a requested size into [1, MaxBoardSize], defaulting to DefaultBoardSize.
func ClampBoardSize(limit int) int {
	if limit < 1 {
		return DefaultBoardSize
	}
	if limit > MaxBoardSize {
		return MaxBoardSize
	}
	return limit
}

// Leaderboard ranks active wallets by total earned.
func (s *Service) Leaderboard(ctx context.Context, limit int, currentUserID uuid.UUID) ([]LeaderboardEntry, error) {
	limit = ClampBoardSize(limit)

	rows, err := s.leaderboardRows(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			UserEmail:      row.Email,
			TotalEarned:    row.TotalEarned.StringFixed(2),
			CurrentBalance: row.Balance.StringFixed(2),
			IsCurrentUser:  row.UserID == currentUserID,
		})
	}
	return entries, nil
}

func (s *Service) leaderboardRows(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return s.repo.Leaderboard(ctx, limit)
	}

	key := leaderboardKeyPrefix + strconv.Itoa(limit)
	raw, err := s.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []LeaderboardRow
		if jerr := json.Unmarshal(raw, &rows); jerr == nil {
			metrics.LeaderboardCache.WithLabelValues("hit").Inc()
			return rows, nil
		}
		metrics.LeaderboardCache.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.LeaderboardCache.WithLabelValues("miss").Inc()
	default:
		metrics.LeaderboardCache.WithLabelValues("error").Inc()
		logger.LogWarn(ctx, "leaderboard cache read failed", "error", err.Error())
	}

	rows, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(rows); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
			logger.LogWarn(ctx, "leaderboard cache write failed", "error", err.Error())
		}
	}
	return rows, nil
}
