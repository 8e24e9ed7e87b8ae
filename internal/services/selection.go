package services

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"quizforge-backend/internal/models"
)

// AllowedQuestionCounts are the attempt sizes a quiz taker may choose.
var AllowedQuestionCounts = []int{5, 10, 15, 20, 25}

// difficultyMix is the percentage of Easy, Medium and Hard questions for each
// selected difficulty.
var difficultyMix = map[string][3]int{
	models.DifficultyEasy:   {70, 20, 10},
	models.DifficultyMedium: {20, 70, 10},
	models.DifficultyHard:   {10, 20, 70},
}

var difficultyOrder = []string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}

// SelectQuestions draws n questions from the eligible pool. Recently seen
// questions are avoided unless that leaves fewer than n. Each difficulty
// bucket is filled according to the mix, shortfalls are topped up from the
// remaining pool and the result is shuffled.
func SelectQuestions(rng *rand.Rand, pool []*models.Question, n int, difficulty string, recent []uuid.UUID) []uuid.UUID {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]bool, len(recent))
	for _, id := range recent {
		seen[id] = true
	}
	available := make([]*models.Question, 0, len(pool))
	for _, q := range pool {
		if !seen[q.ID] {
			available = append(available, q)
		}
	}
	if len(available) < n {
		available = pool
	}

	byDifficulty := map[string][]*models.Question{}
	for _, q := range available {
		byDifficulty[q.Difficulty] = append(byDifficulty[q.Difficulty], q)
	}

	mix, ok := difficultyMix[difficulty]
	if !ok {
		mix = difficultyMix[models.DifficultyMedium]
	}
	easy := n * mix[0] / 100
	medium := n * mix[1] / 100
	targets := []int{easy, medium, n - easy - medium}

	picked := make(map[uuid.UUID]bool, n)
	selected := make([]uuid.UUID, 0, n)
	for i, d := range difficultyOrder {
		bucket := byDifficulty[d]
		rng.Shuffle(len(bucket), func(a, b int) { bucket[a], bucket[b] = bucket[b], bucket[a] })
		for _, q := range bucket[:min(targets[i], len(bucket))] {
			picked[q.ID] = true
			selected = append(selected, q.ID)
		}
	}

	if len(selected) < n {
		var rest []*models.Question
		for _, q := range available {
			if !picked[q.ID] {
				rest = append(rest, q)
			}
		}
		rng.Shuffle(len(rest), func(a, b int) { rest[a], rest[b] = rest[b], rest[a] })
		for _, q := range rest[:min(n-len(selected), len(rest))] {
			selected = append(selected, q.ID)
		}
	}

	rng.Shuffle(len(selected), func(a, b int) { selected[a], selected[b] = selected[b], selected[a] })
	return selected
}
