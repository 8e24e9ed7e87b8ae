package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/models"
)

// RevalidationQueue holds question ids waiting for a background validator run.
const RevalidationQueue = "queue:revalidation"

const (
	popTimeout = 5 * time.Second
	lockTTL    = 5 * time.Minute
)

type revalidator interface {
	Revalidate(ctx context.Context, id uuid.UUID, quizID *uuid.UUID) (*models.SaveQuestionResult, error)
}

type revalidationJob struct {
	QuestionID uuid.UUID `json:"question_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Pool drains the revalidation queue with a fixed number of goroutines.
// A Redis lock per question keeps two workers from validating it at once.
type Pool struct {
	redis       *redis.Client
	questions   revalidator
	workerCount int
	jobTimeout  time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewPool(redisClient *redis.Client, questions revalidator, workerCount int, jobTimeout time.Duration) *Pool {
	return &Pool{
		redis:       redisClient,
		questions:   questions,
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		stopChan:    make(chan struct{}),
	}
}

// Enqueue pushes question ids onto the revalidation queue.
func (p *Pool) Enqueue(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now()
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		data, err := json.Marshal(revalidationJob{QuestionID: id, QueuedAt: now})
		if err != nil {
			return 0, err
		}
		values = append(values, string(data))
	}

	if err := p.redis.RPush(ctx, RevalidationQueue, values...).Err(); err != nil {
		return 0, fmt.Errorf("enqueue revalidation: %w", err)
	}
	return len(ids), nil
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info().Int("workers", p.workerCount).Msg("revalidation workers started")
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Debug().Int("worker", id).Msg("revalidation worker shutting down")
			return
		default:
		}

		ctx := context.Background()
		result, err := p.redis.BLPop(ctx, popTimeout, RevalidationQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Int("worker", id).Msg("revalidation queue pop failed")
				p.pause()
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job revalidationJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error().Err(err).Int("worker", id).Msg("failed to parse revalidation job")
			continue
		}

		p.process(ctx, id, job)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job revalidationJob) {
	lockKey := "revalidate_lock:" + job.QuestionID.String()
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil || !locked {
		return
	}
	defer p.redis.Del(ctx, lockKey)

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	res, err := p.questions.Revalidate(jobCtx, job.QuestionID, nil)
	if err != nil {
		log.Warn().Err(err).Int("worker", workerID).Str("question_id", job.QuestionID.String()).Msg("background revalidation failed")
		return
	}

	outcome := ""
	if res.Validation != nil {
		outcome = res.Validation.Outcome
	}
	log.Info().Int("worker", workerID).Str("question_id", job.QuestionID.String()).
		Str("outcome", outcome).Dur("waited", time.Since(job.QueuedAt)).Msg("question revalidated")
}

// pause backs off after a Redis error unless the pool is stopping.
func (p *Pool) pause() {
	select {
	case <-p.stopChan:
	case <-time.After(time.Second):
	}
}
