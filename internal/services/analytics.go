package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"quizforge-backend/internal/models"
)

const (
	trendWindow    = 3
	trendThreshold = 5.0
	defaultHistory = 10
	maxHistory     = 100
)

type scoreStore interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.HistoryEntry, error)
	CompletedScores(ctx context.Context, userID uuid.UUID, limit int) ([]models.TrendPoint, error)
	ScoreSummary(ctx context.Context, userID uuid.UUID) (int, float64, float64, error)
}

type AnalyticsService struct {
	scores scoreStore
}

func NewAnalyticsService(scores scoreStore) *AnalyticsService {
	return &AnalyticsService{scores: scores}
}

func (s *AnalyticsService) Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	count, avg, best, err := s.scores.ScoreSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("score summary: %w", err)
	}

	recent, err := s.scores.CompletedScores(ctx, userID, trendWindow*2)
	if err != nil {
		return nil, fmt.Errorf("recent scores: %w", err)
	}

	return &models.UserStats{
		TotalAttempts: count,
		AverageScore:  round1(avg),
		BestScore:     round1(best),
		Trend:         describeTrend(recent),
	}, nil
}

func (s *AnalyticsService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.HistoryEntry, error) {
	entries, err := s.scores.History(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.ScorePercent = Percentage(e.CorrectCount, e.TotalQuestions)
	}
	return entries, nil
}

// Trend returns the latest completed attempts in chronological order,
// numbered from the oldest one returned.
func (s *AnalyticsService) Trend(ctx context.Context, userID uuid.UUID, limit int) ([]models.TrendPoint, error) {
	points, err := s.scores.CompletedScores(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	out := make([]models.TrendPoint, len(points))
	for i, p := range points {
		j := len(points) - 1 - i
		p.AttemptNumber = j + 1
		p.ScorePercent = round1(p.ScorePercent)
		out[j] = p
	}
	return out, nil
}

// describeTrend compares the average of the three newest scores with the
// three before them. Scores arrive newest first.
func describeTrend(scores []models.TrendPoint) string {
	if len(scores) < trendWindow*2 {
		return "Stable"
	}

	var recent, previous float64
	for i := 0; i < trendWindow; i++ {
		recent += scores[i].ScorePercent
		previous += scores[i+trendWindow].ScorePercent
	}
	diff := (recent - previous) / trendWindow

	switch {
	case diff > trendThreshold:
		return fmt.Sprintf("Improving (+%.1f%%)", diff)
	case diff < -trendThreshold:
		return fmt.Sprintf("Declining (%.1f%%)", diff)
	default:
		return "Stable"
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistory
	}
	return min(limit, maxHistory)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
