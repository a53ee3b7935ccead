package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"assessment-monitor-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessments with their question banks from a backing store.
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID int64) (domain.Assessment, error)
}

// AssessmentRepository caches assessments in Redis and falls back to a loader on cache miss.
// Each assessment is stored as JSON: SET assessment:{id} {json} EX ttl
type AssessmentRepository struct {
	client *redis.Client
	loader AssessmentLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewAssessmentRepository(client *redis.Client, loader AssessmentLoader, ttl time.Duration, logger *slog.Logger) *AssessmentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssessmentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID int64) (domain.Assessment, error) {
	if a, ok := r.cached(ctx, assessmentID); ok {
		return a, nil
	}

	result, err, _ := r.sf.Do(r.key(assessmentID), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if a, ok := r.cached(ctx, assessmentID); ok {
			return a, nil
		}

		assessment, err := r.loader.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return domain.Assessment{}, err
		}

		data, err := json.Marshal(assessment)
		if err == nil {
			err = r.client.Set(ctx, r.key(assessmentID), data, r.ttlWithJitter()).Err()
		}
		if err != nil {
			// the loaded assessment is still good; the next call retries the cache
			r.logger.WarnContext(ctx, "assessment cache write failed",
				"assessment_id", assessmentID,
				"error", err)
		}
		return assessment, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

// Invalidate drops the cached copy of an assessment.
func (r *AssessmentRepository) Invalidate(ctx context.Context, assessmentID int64) error {
	return r.client.Del(ctx, r.key(assessmentID)).Err()
}

func (r *AssessmentRepository) cached(ctx context.Context, assessmentID int64) (domain.Assessment, bool) {
	raw, err := r.client.Get(ctx, r.key(assessmentID)).Bytes()
	if err != nil {
		return domain.Assessment{}, false
	}
	var assessment domain.Assessment
	if err := json.Unmarshal(raw, &assessment); err != nil {
		return domain.Assessment{}, false
	}
	return assessment, true
}

func (r *AssessmentRepository) key(assessmentID int64) string {
	return "assessment:" + strconv.FormatInt(assessmentID, 10)
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
