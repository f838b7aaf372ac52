package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/validation"
)

type groupStore interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	SaveConfiguration(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error
	AppendSubject(ctx context.Context, id string, subject timetable.Subject) error
	UpdateTimetable(ctx context.Context, exec sqlx.ExtContext, id string, document types.JSONText) error
}

type timetableVersionStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.TimetableVersion) error
	ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]models.TimetableVersion, int, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableCache interface {
	Key(parts ...string) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.TimetableEvent) error
}

type generationRecorder interface {
	ObserveGeneration(outcome string, attempts, units int, duration time.Duration)
}

type timetableRenderer interface {
	Render(className string, schedule timetable.Schedule, format string) (*dto.ExportedFile, error)
}

// TimetableServiceConfig holds the generation defaults a group may override.
// Seed fixes the random source of every generation call; zero seeds each
// call from the clock.
type TimetableServiceConfig struct {
	Days              []string
	MaxPeriods        int
	Rooms             []string
	Attempts          int
	Workers           int
	LabMarker         string
	Seed              int64
	CacheTTL          time.Duration
	GenerationTimeout time.Duration
}

// TimetableService stores group configuration, runs the timetable engine and
// keeps the generated or hand-edited timetable with its version history.
type TimetableService struct {
	groups    groupStore
	versions  timetableVersionStore
	tx        txProvider
	cache     timetableCache
	events    eventPublisher
	metrics   generationRecorder
	exporter  timetableRenderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
	clock     func() time.Time
	loads     singleflight.Group
}

// NewTimetableService wires timetable dependencies. cache, events, metrics and
// exporter may be nil.
func NewTimetableService(
	groups groupStore,
	versions timetableVersionStore,
	tx txProvider,
	cache timetableCache,
	publisher eventPublisher,
	metrics generationRecorder,
	exporter timetableRenderer,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExportService(logger, nil, nil, nil)
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &TimetableService{
		groups:    groups,
		versions:  versions,
		tx:        tx,
		cache:     cache,
		events:    publisher,
		metrics:   metrics,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// Configure replaces the subjects, teachers, classes and settings of a group,
// creating the group when it does not exist yet. The configuration is stored
// as given; consistency is checked when a timetable is generated. The actor
// becomes the owner of a new or unowned group.
func (s *TimetableService) Configure(ctx context.Context, groupID, actorID string, req dto.ConfigureTimetableRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidRequest(err, "invalid timetable configuration payload")
	}

	group := &models.Group{ID: groupID}
	existing, err := s.groups.FindByID(ctx, groupID)
	switch {
	case err == nil:
		group = existing
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		group.Name = name
	}
	if group.OwnerID == "" {
		group.OwnerID = actorID
	}
	if req.Members != nil {
		group.Members = memberIDs(req.Members, group.OwnerID)
	}
	group.Subjects = toSubjects(req.Subjects)
	group.Teachers = toTeachers(req.Teachers)
	group.Classes = toClasses(req.Classes)
	group.Settings = toSettings(req.Settings)

	if err := s.groups.SaveConfiguration(ctx, nil, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable configuration")
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, s.timetableKey(group.ID))
	}
	s.logger.Info("timetable configuration saved",
		zap.String("group_id", group.ID),
		zap.String("owner_id", group.OwnerID),
		zap.Int("classes", len(group.Classes)),
		zap.Int("subjects", len(group.Subjects)),
	)
	return group, nil
}

// AddSubject appends a subject to the group's master list.
func (s *TimetableService) AddSubject(ctx context.Context, groupID string, req dto.SubjectPayload) (*timetable.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidRequest(err, "invalid subject payload")
	}
	subject := timetable.Subject{
		Name:         strings.TrimSpace(req.Name),
		Abbreviation: strings.TrimSpace(req.Abbreviation),
		IsLab:        req.IsLab,
	}
	if err := s.groups.AppendSubject(ctx, groupID, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add subject")
	}
	return &subject, nil
}

// Generate runs the engine over the stored configuration and persists the
// resulting per-class timetable as a new version.
func (s *TimetableService) Generate(ctx context.Context, groupID, actorID string) (*dto.GenerateTimetableResponse, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = s.clock().UnixNano()
	}
	engine := timetable.NewEngine(s.engineOptions(group.Settings, seed))

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	result, err := engine.Generate(genCtx, timetable.Input{
		Subjects: group.Subjects,
		Teachers: group.Teachers,
		Classes:  group.Classes,
	})
	if err != nil {
		s.observe(generationOutcome(err), 0, 0, time.Since(start))
		s.logger.Warn("timetable generation rejected", zap.String("group_id", groupID), zap.Error(err))
		return nil, mapEngineError(err)
	}
	s.observe(GenerationOutcomeSuccess, result.Attempts, result.Units, time.Since(start))

	document, err := json.Marshal(result.Timetables)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable")
	}
	meta, err := json.Marshal(map[string]any{
		"attempts":     result.Attempts,
		"units":        result.Units,
		"seed":         seed,
		"primaryClass": result.PrimaryClass,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	version := &models.TimetableVersion{
		GroupID:   groupID,
		Source:    models.TimetableSourceGenerated,
		Timetable: types.JSONText(document),
		Meta:      types.JSONText(meta),
		CreatedBy: actorID,
	}
	if err := s.store(ctx, groupID, version); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TimetableEvent{
		Type:      events.TimetableGenerated,
		GroupID:   groupID,
		VersionID: version.ID,
		Version:   version.Version,
		Source:    string(version.Source),
		Attempts:  result.Attempts,
		ActorID:   actorID,
	})

	return &dto.GenerateTimetableResponse{
		Timetables:   result.Timetables,
		PrimaryClass: result.PrimaryClass,
		Attempts:     result.Attempts,
		Units:        result.Units,
		VersionID:    version.ID,
	}, nil
}

// Update overwrites the stored timetable with a hand-edited document. The
// document is stored exactly as received and never re-validated.
func (s *TimetableService) Update(ctx context.Context, groupID, actorID string, req dto.UpdateTimetableRequest) (*models.TimetableVersion, error) {
	raw := strings.TrimSpace(string(req.Timetable))
	if raw == "" || raw == "null" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable is required")
	}
	if !json.Valid([]byte(raw)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable must be valid JSON")
	}

	version := &models.TimetableVersion{
		GroupID:   groupID,
		Source:    models.TimetableSourceManual,
		Timetable: types.JSONText(raw),
		CreatedBy: actorID,
	}
	if err := s.store(ctx, groupID, version); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TimetableEvent{
		Type:      events.TimetableUpdated,
		GroupID:   groupID,
		VersionID: version.ID,
		Version:   version.Version,
		Source:    string(version.Source),
		ActorID:   actorID,
	})
	return version, nil
}

// Get returns the stored timetable document of a group, preferring the cache.
func (s *TimetableService) Get(ctx context.Context, groupID string) (types.JSONText, error) {
	if s.cache != nil {
		var cached types.JSONText
		hit, err := s.cache.Get(ctx, s.timetableKey(groupID), &cached)
		if err == nil && hit {
			return cached, nil
		}
	}

	// Concurrent misses for one group share a single database read. The read
	// outlives the caller that started it so the other waiters still get
	// the result.
	result := s.loads.DoChan(groupID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.GenerationTimeout)
		defer cancel()
		group, err := s.loadGroup(loadCtx, groupID)
		if err != nil {
			return nil, err
		}
		document := group.Timetable
		if len(document) == 0 {
			document = types.JSONText(`{}`)
		}
		s.cacheTimetable(loadCtx, groupID, document)
		return document, nil
	})
	select {
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable read cancelled")
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(types.JSONText), nil
	}
}

// History lists stored timetable versions, newest first.
func (s *TimetableService) History(ctx context.Context, groupID string, query dto.TimetableHistoryQuery) ([]models.TimetableVersion, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, invalidRequest(err, "invalid history query")
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}

	if _, err := s.loadGroup(ctx, groupID); err != nil {
		return nil, nil, err
	}
	items, total, err := s.versions.ListByGroup(ctx, groupID, size, (page-1)*size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable versions")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Export renders one class of the stored timetable. An empty class name
// selects the first configured class.
func (s *TimetableService) Export(ctx context.Context, groupID string, query dto.TimetableExportQuery) (*dto.ExportedFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, invalidRequest(err, "invalid export query")
	}
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var timetables map[string]timetable.Schedule
	if len(group.Timetable) > 0 {
		if err := group.Timetable.Unmarshal(&timetables); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "stored timetable cannot be exported")
		}
	}
	if len(timetables) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable has not been generated")
	}

	className := strings.TrimSpace(query.Class)
	if className == "" && len(group.Classes) > 0 {
		className = group.Classes[0].Name
	}
	schedule, ok := timetables[className]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no timetable for class %q", className))
	}
	return s.exporter.Render(className, schedule, query.Format)
}

func (s *TimetableService) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group id is required")
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// store writes the timetable document and its version row in one transaction.
func (s *TimetableService) store(ctx context.Context, groupID string, version *models.TimetableVersion) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.groups.UpdateTimetable(ctx, tx, groupID, version.Timetable); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "group not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
		return err
	}
	if err = s.versions.CreateVersioned(ctx, tx, version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "timetable was changed concurrently, retry the request")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record timetable version")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return err
	}

	s.cacheTimetable(ctx, groupID, version.Timetable)
	return nil
}

// memberIDs trims and de-duplicates member ids. The owner is implied.
func memberIDs(ids []string, ownerID string) []string {
	seen := make(map[string]struct{}, len(ids))
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == ownerID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}

func (s *TimetableService) engineOptions(settings models.GroupSettings, seed int64) timetable.Options {
	opts := timetable.Options{
		Days:       s.cfg.Days,
		MaxPeriods: s.cfg.MaxPeriods,
		Rooms:      s.cfg.Rooms,
		Attempts:   s.cfg.Attempts,
		LabMarker:  s.cfg.LabMarker,
		Workers:    s.cfg.Workers,
		Rand:       rand.New(rand.NewSource(seed)),
		Logger:     s.logger,
	}
	if len(settings.Days) > 0 {
		opts.Days = settings.Days
	}
	if settings.MaxPeriods > 0 {
		opts.MaxPeriods = settings.MaxPeriods
	}
	if len(settings.Rooms) > 0 {
		opts.Rooms = settings.Rooms
	}
	if settings.Attempts > 0 {
		opts.Attempts = settings.Attempts
	}
	return opts
}

func (s *TimetableService) timetableKey(groupID string) string {
	return s.cache.Key("group", groupID)
}

func (s *TimetableService) cacheTimetable(ctx context.Context, groupID string, document types.JSONText) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.timetableKey(groupID), document, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache timetable", zap.String("group_id", groupID), zap.Error(err))
	}
}

func (s *TimetableService) publish(ctx context.Context, event events.TimetableEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish timetable event", zap.String("type", event.Type), zap.String("group_id", event.GroupID), zap.Error(err))
	}
}

func (s *TimetableService) observe(outcome string, attempts, units int, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveGeneration(outcome, attempts, units, duration)
}

func generationOutcome(err error) string {
	switch {
	case timetable.IsValidationError(err):
		return GenerationOutcomeInvalid
	case errors.Is(err, timetable.ErrGenerationFailed):
		return GenerationOutcomeExhausted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return GenerationOutcomeCancelled
	default:
		return GenerationOutcomeInfraError
	}
}

func invalidRequest(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message).
		WithDetails(validation.Details(err))
}

// mapEngineError converts engine errors into API errors carrying the engine message.
func mapEngineError(err error) error {
	switch {
	case timetable.IsValidationError(err):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()).
			WithDetails(engineErrorDetails(err))
	case errors.Is(err, timetable.ErrGenerationFailed):
		return appErrors.Wrap(err, appErrors.ErrGenerationFailed.Code, appErrors.ErrGenerationFailed.Status, err.Error()).
			WithDetails(engineErrorDetails(err))
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation timed out")
	case errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation cancelled")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
	}
}

func engineErrorDetails(err error) map[string]interface{} {
	var (
		mismatch   *timetable.PeriodMismatchError
		missing    *timetable.MissingTeacherError
		assignment *timetable.InvalidAssignmentError
		duplicate  *timetable.DuplicateClassError
		capacity   *timetable.CapacityError
		exhausted  *timetable.GenerationError
	)
	switch {
	case errors.As(err, &mismatch):
		return map[string]interface{}{"class": mismatch.ClassName, "available": mismatch.Available, "assigned": mismatch.Assigned}
	case errors.As(err, &missing):
		return map[string]interface{}{"class": missing.ClassName, "subject": missing.Subject}
	case errors.As(err, &assignment):
		return map[string]interface{}{"class": assignment.ClassName, "subject": assignment.Subject, "periods": assignment.Periods}
	case errors.As(err, &duplicate):
		return map[string]interface{}{"class": duplicate.ClassName}
	case errors.As(err, &capacity):
		return map[string]interface{}{"class": capacity.ClassName, "day": capacity.Day, "periods": capacity.Periods, "max_periods": capacity.MaxPeriods}
	case errors.As(err, &exhausted):
		return map[string]interface{}{"attempts": exhausted.Attempts}
	}
	return nil
}

func toSubjects(items []dto.SubjectPayload) []timetable.Subject {
	subjects := make([]timetable.Subject, 0, len(items))
	for _, item := range items {
		subjects = append(subjects, timetable.Subject{
			Name:         strings.TrimSpace(item.Name),
			Abbreviation: strings.TrimSpace(item.Abbreviation),
			IsLab:        item.IsLab,
		})
	}
	return subjects
}

func toTeachers(items []dto.TeacherPayload) []timetable.Teacher {
	teachers := make([]timetable.Teacher, 0, len(items))
	for _, item := range items {
		teachers = append(teachers, timetable.Teacher{
			Name:     strings.TrimSpace(item.Name),
			Subjects: item.Subjects,
		})
	}
	return teachers
}

func toClasses(items []dto.ClassPayload) []timetable.ClassConfig {
	classes := make([]timetable.ClassConfig, 0, len(items))
	for _, item := range items {
		assignments := make([]timetable.SubjectAssignment, 0, len(item.SubjectsAssigned))
		for _, a := range item.SubjectsAssigned {
			assignments = append(assignments, timetable.SubjectAssignment{
				Subject:  strings.TrimSpace(a.Subject),
				Periods:  a.Periods,
				Teachers: timetable.NewTeacherList(a.Teachers...),
			})
		}
		classes = append(classes, timetable.ClassConfig{
			Name:             strings.TrimSpace(item.Name),
			PeriodsPerDay:    item.PeriodsPerDay,
			SubjectsAssigned: assignments,
		})
	}
	return classes
}

func toSettings(payload *dto.SettingsPayload) models.GroupSettings {
	if payload == nil {
		return models.GroupSettings{}
	}
	return models.GroupSettings{
		Days:       payload.Days,
		MaxPeriods: payload.MaxPeriods,
		Rooms:      payload.Rooms,
		Attempts:   payload.Attempts,
	}
}
