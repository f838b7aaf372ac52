package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// GenerationJobType is the queue job type for asynchronous generation.
const GenerationJobType = "timetable.generate"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type groupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type timetableGenerator interface {
	Generate(ctx context.Context, groupID, actorID string) (*dto.GenerateTimetableResponse, error)
}

type generationJobPayload struct {
	GroupID string
	ActorID string
}

// GenerationJobConfig governs asynchronous generation.
type GenerationJobConfig struct {
	StatusTTL  time.Duration
	MaxRetries int
}

// GenerationJobService queues timetable generation and tracks job state.
// State lives in process memory and is mirrored to the cache.
type GenerationJobService struct {
	groups     groupReader
	generator  timetableGenerator
	queue      jobEnqueuer
	cache      timetableCache
	store      *generationJobStore
	logger     *zap.Logger
	maxRetries int
	ttl        time.Duration
}

// NewGenerationJobService constructs the service.
func NewGenerationJobService(groups groupReader, generator timetableGenerator, queue jobEnqueuer, cache timetableCache, logger *zap.Logger, cfg GenerationJobConfig) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &GenerationJobService{
		groups:     groups,
		generator:  generator,
		queue:      queue,
		cache:      cache,
		store:      newGenerationJobStore(cfg.StatusTTL),
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		ttl:        cfg.StatusTTL,
	}
}

// GenerateAsync records a pending job for the group and queues it.
func (s *GenerationJobService) GenerateAsync(ctx context.Context, groupID, actorID string) (*models.GenerationJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "asynchronous generation is not available")
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group id is required")
	}
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	now := time.Now().UTC()
	job := models.GenerationJob{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Status:    models.GenerationJobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.save(ctx, job)

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    GenerationJobType,
		Payload: generationJobPayload{GroupID: groupID, ActorID: actorID},
	}); err != nil {
		job.Status = models.GenerationJobFailed
		job.Error = "failed to queue generation"
		s.save(ctx, job)
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to queue timetable generation")
	}
	return &job, nil
}

// JobStatus returns the last known state of a job.
func (s *GenerationJobService) JobStatus(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	if job, ok := s.store.Get(jobID); ok {
		return &job, nil
	}
	if s.cache != nil {
		var cached models.GenerationJob
		hit, err := s.cache.Get(ctx, s.cache.Key("job", jobID), &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
}

// Handle processes one queued generation job. Engine and validation failures
// are final; infrastructure failures are retried by the queue.
func (s *GenerationJobService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(generationJobPayload)
	if !ok {
		return jobs.Permanent(errors.New("unexpected generation job payload"))
	}
	state, ok := s.store.Get(job.ID)
	if !ok {
		state = models.GenerationJob{ID: job.ID, GroupID: payload.GroupID, CreatedAt: job.Enqueued}
	}
	state.Status = models.GenerationJobRunning
	state.UpdatedAt = time.Now().UTC()
	s.save(ctx, state)

	result, err := s.generator.Generate(ctx, payload.GroupID, payload.ActorID)
	state.UpdatedAt = time.Now().UTC()
	if err != nil {
		appErr := appErrors.FromError(err)
		state.Error = appErr.Message
		retryable := appErr.Code == appErrors.ErrInternal.Code && job.Attempt < s.maxRetries
		if retryable {
			state.Status = models.GenerationJobPending
			s.save(ctx, state)
			return err
		}
		state.Status = models.GenerationJobFailed
		s.save(ctx, state)
		s.logger.Info("generation job failed", zap.String("job_id", job.ID), zap.String("group_id", payload.GroupID), zap.String("code", appErr.Code))
		return jobs.Permanent(err)
	}

	state.Status = models.GenerationJobSucceeded
	state.Attempts = result.Attempts
	state.VersionID = result.VersionID
	state.Error = ""
	s.save(ctx, state)
	return nil
}

// Abandon marks a job the queue gave up on as failed. Jobs that already
// finished keep their state. It is meant to be the queue's OnDrop hook.
func (s *GenerationJobService) Abandon(job jobs.Job, cause error) {
	state, ok := s.store.Get(job.ID)
	if ok && (state.Status == models.GenerationJobSucceeded || state.Status == models.GenerationJobFailed) {
		return
	}
	if !ok {
		state = models.GenerationJob{ID: job.ID, CreatedAt: job.Enqueued}
		if payload, valid := job.Payload.(generationJobPayload); valid {
			state.GroupID = payload.GroupID
		}
	}
	state.Status = models.GenerationJobFailed
	state.UpdatedAt = time.Now().UTC()
	if state.Error == "" {
		state.Error = "generation was not completed"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.save(ctx, state)
	s.logger.Warn("generation job abandoned",
		zap.String("job_id", job.ID),
		zap.String("group_id", state.GroupID),
		zap.Int("attempt", job.Attempt),
		zap.Error(cause),
	)
}

func (s *GenerationJobService) save(ctx context.Context, job models.GenerationJob) {
	s.store.Save(job)
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.Key("job", job.ID), job, s.ttl); err != nil {
		s.logger.Warn("failed to cache generation job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

type generationJobStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]models.GenerationJob
}

func newGenerationJobStore(ttl time.Duration) *generationJobStore {
	return &generationJobStore{
		ttl:   ttl,
		items: make(map[string]models.GenerationJob),
	}
}

func (s *generationJobStore) Save(job models.GenerationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[job.ID] = job
}

func (s *generationJobStore) Get(id string) (models.GenerationJob, bool) {
	s.mu.RLock()
	job, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.GenerationJob{}, false
	}
	if time.Since(job.UpdatedAt) > s.ttl {
		s.Delete(id)
		return models.GenerationJob{}, false
	}
	return job, true
}

func (s *generationJobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
