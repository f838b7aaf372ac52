package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
)

func TestTimetableServiceGenerateSuccess(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.svc.Generate(context.Background(), "group-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "10A", resp.PrimaryClass)
	assert.Equal(t, 2, resp.Units)
	assert.Equal(t, 1, resp.Attempts)
	assert.NotEmpty(t, resp.VersionID)

	monday := resp.Timetables["10A"][0]
	require.Len(t, monday.Slots, 2)
	assert.Equal(t, "Mathematics", *monday.Slots[0].Subject)
	assert.Equal(t, "Mrs.Roy", *monday.Slots[1].Teacher)

	require.Len(t, fx.versions.created, 1)
	version := fx.versions.created[0]
	assert.Equal(t, models.TimetableSourceGenerated, version.Source)
	assert.Equal(t, "admin-1", version.CreatedBy)
	assert.JSONEq(t, string(version.Timetable), string(fx.groups.items["group-1"].Timetable))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(version.Meta, &meta))
	assert.EqualValues(t, 7, meta["seed"])

	require.Len(t, fx.events.published, 1)
	assert.Equal(t, events.TimetableGenerated, fx.events.published[0].Type)
	assert.Equal(t, []string{GenerationOutcomeSuccess}, fx.metrics.outcomes)
	assert.Contains(t, fx.cache.values, "timetable:group:group-1")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGeneratePeriodMismatch(t *testing.T) {
	fx := newTimetableFixture(t)
	group := exampleGroup()
	group.Classes[0].SubjectsAssigned[0].Periods = 3
	fx.groups.items["group-1"] = group

	_, err := fx.svc.Generate(context.Background(), "group-1", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "10A")
	assert.Equal(t, map[string]interface{}{"class": "10A", "available": 2, "assigned": 3}, appErr.Details)

	var mismatch *timetable.PeriodMismatchError
	assert.True(t, errors.As(err, &mismatch))
	assert.Empty(t, fx.versions.created)
	assert.Equal(t, []string{GenerationOutcomeInvalid}, fx.metrics.outcomes)
}

func TestTimetableServiceGenerateExhausted(t *testing.T) {
	fx := newTimetableFixture(t)
	shared := timetable.NewTeacherList("Mr.Iyer")
	fx.groups.items["group-1"] = &models.Group{
		ID:       "group-1",
		Settings: models.GroupSettings{Attempts: 5},
		Classes: []timetable.ClassConfig{
			{Name: "10A", PeriodsPerDay: map[string]int{"Mon": 6}, SubjectsAssigned: []timetable.SubjectAssignment{{Subject: "MATH", Periods: 6, Teachers: shared}}},
			{Name: "10B", PeriodsPerDay: map[string]int{"Mon": 6}, SubjectsAssigned: []timetable.SubjectAssignment{{Subject: "MATH", Periods: 6, Teachers: shared}}},
		},
	}

	_, err := fx.svc.Generate(context.Background(), "group-1", "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGenerationFailed.Code, appErr.Code)
	assert.Equal(t, 422, appErr.Status)
	assert.Equal(t, 5, appErr.Details["attempts"])

	var genErr *timetable.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 5, genErr.Attempts)
	assert.Equal(t, []string{GenerationOutcomeExhausted}, fx.metrics.outcomes)
}

func TestTimetableServiceGenerateGroupNotFound(t *testing.T) {
	fx := newTimetableFixture(t)

	_, err := fx.svc.Generate(context.Background(), "missing", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateRollsBackOnVersionError(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()
	fx.versions.err = errors.New("insert failed")

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.svc.Generate(context.Background(), "group-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.events.published)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateVersionConflict(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()
	fx.versions.err = fmt.Errorf("insert timetable version 4: %w", repository.ErrVersionConflict)

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.svc.Generate(context.Background(), "group-1", "admin-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceConfigureClaimsUnownedGroup(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()

	group, err := fx.svc.Configure(context.Background(), "group-1", "admin-2", dto.ConfigureTimetableRequest{Members: []string{}})
	require.NoError(t, err)
	assert.Equal(t, "admin-2", group.OwnerID)
	assert.Empty(t, group.Members)
}

func TestTimetableServiceConfigureCreatesGroup(t *testing.T) {
	fx := newTimetableFixture(t)

	group, err := fx.svc.Configure(context.Background(), "group-1", "admin-1", dto.ConfigureTimetableRequest{
		Name:     "Grade 10",
		Members:  []string{" teacher-7 ", "admin-1", "teacher-7"},
		Subjects: []dto.SubjectPayload{{Name: "Mathematics", Abbreviation: "MATH"}},
		Teachers: []dto.TeacherPayload{{Name: "Mrs.Roy", Subjects: []string{"MATH"}}},
		Classes: []dto.ClassPayload{{
			Name:             " 10A ",
			PeriodsPerDay:    map[string]int{"Mon": 2},
			SubjectsAssigned: []dto.AssignmentPayload{{Subject: "MATH", Periods: 2, Teachers: timetable.TeacherList{"Mrs.Roy", " "}}},
		}},
		Settings: &dto.SettingsPayload{MaxPeriods: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, "group-1", group.ID)
	assert.Equal(t, "10A", group.Classes[0].Name)
	assert.Equal(t, timetable.TeacherList{"Mrs.Roy"}, group.Classes[0].SubjectsAssigned[0].Teachers)
	assert.Equal(t, 8, group.Settings.MaxPeriods)
	assert.Equal(t, "admin-1", group.OwnerID)
	assert.Equal(t, []string{"teacher-7"}, group.Members)
	assert.Same(t, group, fx.groups.items["group-1"])
}

func TestTimetableServiceConfigureKeepsStoredTimetable(t *testing.T) {
	fx := newTimetableFixture(t)
	existing := exampleGroup()
	existing.Timetable = types.JSONText(`{"10A":[]}`)
	existing.OwnerID = "admin-1"
	existing.Members = []string{"teacher-7"}
	fx.groups.items["group-1"] = existing
	fx.cache.values["timetable:group:group-1"] = []byte(`{"10A":[]}`)

	group, err := fx.svc.Configure(context.Background(), "group-1", "superadmin-1", dto.ConfigureTimetableRequest{})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", group.OwnerID)
	assert.Equal(t, []string{"teacher-7"}, group.Members)
	assert.NotContains(t, fx.cache.values, "timetable:group:group-1")
	assert.Equal(t, "Grade 10", group.Name)
	assert.Empty(t, group.Classes)
	assert.Equal(t, types.JSONText(`{"10A":[]}`), group.Timetable)
}

func TestTimetableServiceConfigureValidation(t *testing.T) {
	fx := newTimetableFixture(t)

	_, err := fx.svc.Configure(context.Background(), "group-1", "admin-1", dto.ConfigureTimetableRequest{
		Subjects: []dto.SubjectPayload{{Name: "Mathematics"}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	fields, _ := appErr.Details["fields"].(map[string]string)
	assert.Equal(t, "abbreviation is a required field", fields["subjects[0].abbreviation"])
}

func TestTimetableServiceAddSubject(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()

	subject, err := fx.svc.AddSubject(context.Background(), "group-1", dto.SubjectPayload{Name: "Physics", Abbreviation: "PHY", IsLab: true})
	require.NoError(t, err)
	assert.True(t, subject.IsLab)
	assert.Len(t, fx.groups.items["group-1"].Subjects, 2)

	_, err = fx.svc.AddSubject(context.Background(), "missing", dto.SubjectPayload{Name: "Physics", Abbreviation: "PHY"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceUpdateStoresDocumentAsIs(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	raw := `{"10A":[{"day":"Mon","slots":[{"period":1,"subject":"Anything","teacher":null,"room":null,"isLab":false,"note":"moved"}]}]}`
	version, err := fx.svc.Update(context.Background(), "group-1", "teacher-1", dto.UpdateTimetableRequest{Timetable: types.JSONText(raw)})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableSourceManual, version.Source)
	assert.Equal(t, raw, string(fx.groups.items["group-1"].Timetable))
	require.Len(t, fx.events.published, 1)
	assert.Equal(t, events.TimetableUpdated, fx.events.published[0].Type)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceUpdateRequiresTimetable(t *testing.T) {
	fx := newTimetableFixture(t)
	for _, raw := range []string{"", "null", "{broken"} {
		_, err := fx.svc.Update(context.Background(), "group-1", "", dto.UpdateTimetableRequest{Timetable: types.JSONText(raw)})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestTimetableServiceGetPrefersCache(t *testing.T) {
	fx := newTimetableFixture(t)
	group := exampleGroup()
	group.Timetable = types.JSONText(`{"10A":[]}`)
	fx.groups.items["group-1"] = group

	doc, err := fx.svc.Get(context.Background(), "group-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"10A":[]}`, string(doc))
	assert.Equal(t, 1, fx.groups.findCount())

	doc, err = fx.svc.Get(context.Background(), "group-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"10A":[]}`, string(doc))
	assert.Equal(t, 1, fx.groups.findCount())
}

func TestTimetableServiceGetSharedLoadSurvivesCancelledCaller(t *testing.T) {
	fx := newTimetableFixture(t)
	group := exampleGroup()
	group.Timetable = types.JSONText(`{"10A":[]}`)
	fx.groups.items["group-1"] = group
	fx.groups.entered = make(chan struct{}, 1)
	fx.groups.gate = make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := fx.svc.Get(firstCtx, "group-1")
		firstErr <- err
	}()
	<-fx.groups.entered

	type outcome struct {
		doc types.JSONText
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		doc, err := fx.svc.Get(context.Background(), "group-1")
		second <- outcome{doc: doc, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)

	close(fx.groups.gate)
	res := <-second
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"10A":[]}`, string(res.doc))
	assert.Equal(t, 1, fx.groups.findCount())
	assert.Contains(t, fx.cache.values, "timetable:group:group-1")
}

func TestTimetableServiceHistory(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()
	fx.versions.list = []models.TimetableVersion{{ID: "v-2", Version: 2}, {ID: "v-1", Version: 1}}

	items, pagination, err := fx.svc.History(context.Background(), "group-1", dto.TimetableHistoryQuery{Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 5, fx.versions.limit)
	assert.Equal(t, 5, fx.versions.offset)
}

func TestTimetableServiceExport(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	_, err := fx.svc.Generate(context.Background(), "group-1", "")
	require.NoError(t, err)

	file, err := fx.svc.Export(context.Background(), "group-1", dto.TimetableExportQuery{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "timetable_10A.csv", file.Filename)
	assert.Contains(t, string(file.Content), "Mon,1,Mathematics,MATH,Mrs.Roy,101,")

	_, err = fx.svc.Export(context.Background(), "group-1", dto.TimetableExportQuery{Class: "12Z"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	file, err = fx.svc.Export(context.Background(), "group-1", dto.TimetableExportQuery{Format: "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "timetable_10A.xlsx", file.Filename)

	_, err = fx.svc.Export(context.Background(), "group-1", dto.TimetableExportQuery{Format: "docx"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceExportBeforeGeneration(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.groups.items["group-1"] = exampleGroup()

	_, err := fx.svc.Export(context.Background(), "group-1", dto.TimetableExportQuery{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

type timetableFixture struct {
	svc      *TimetableService
	groups   *groupStoreStub
	versions *versionStoreStub
	cache    *cacheStub
	events   *publisherStub
	metrics  *generationRecorderStub
	mock     sqlmock.Sqlmock
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	tx, mock := newTxProviderMock(t)
	fx := &timetableFixture{
		groups:   &groupStoreStub{items: map[string]*models.Group{}},
		versions: &versionStoreStub{},
		cache:    &cacheStub{values: map[string][]byte{}},
		events:   &publisherStub{},
		metrics:  &generationRecorderStub{},
		mock:     mock,
	}
	fx.svc = NewTimetableService(fx.groups, fx.versions, tx, fx.cache, fx.events, fx.metrics, nil, nil, nil, TimetableServiceConfig{Seed: 7})
	return fx
}

func exampleGroup() *models.Group {
	return &models.Group{
		ID:       "group-1",
		Name:     "Grade 10",
		Subjects: []timetable.Subject{{Name: "Mathematics", Abbreviation: "MATH"}},
		Teachers: []timetable.Teacher{{Name: "Mrs.Roy", Subjects: []string{"MATH"}}},
		Classes: []timetable.ClassConfig{{
			Name:             "10A",
			PeriodsPerDay:    map[string]int{"Mon": 2, "Tue": 0, "Wed": 0, "Thu": 0, "Fri": 0},
			SubjectsAssigned: []timetable.SubjectAssignment{{Subject: "MATH", Periods: 2, Teachers: timetable.NewTeacherList("Mrs.Roy")}},
		}},
	}
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type groupStoreStub struct {
	mu    sync.Mutex
	items map[string]*models.Group
	finds int
	// entered and gate, when set, pause FindByID until gate is closed.
	entered chan struct{}
	gate    chan struct{}
}

func (s *groupStoreStub) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

func (s *groupStoreStub) FindByID(ctx context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	if s.gate != nil {
		s.entered <- struct{}{}
		<-s.gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	group, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return group, nil
}

func (s *groupStoreStub) SaveConfiguration(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	s.items[group.ID] = group
	return nil
}

func (s *groupStoreStub) AppendSubject(ctx context.Context, id string, subject timetable.Subject) error {
	group, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	group.Subjects = append(group.Subjects, subject)
	return nil
}

func (s *groupStoreStub) UpdateTimetable(ctx context.Context, exec sqlx.ExtContext, id string, document types.JSONText) error {
	group, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	group.Timetable = document
	return nil
}

type versionStoreStub struct {
	created []models.TimetableVersion
	list    []models.TimetableVersion
	err     error
	limit   int
	offset  int
}

func (s *versionStoreStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.TimetableVersion) error {
	if s.err != nil {
		return s.err
	}
	version.ID = "version-1"
	version.Version = len(s.created) + 1
	s.created = append(s.created, *version)
	return nil
}

func (s *versionStoreStub) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]models.TimetableVersion, int, error) {
	s.limit = limit
	s.offset = offset
	return s.list, len(s.list), nil
}

type cacheStub struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (c *cacheStub) Key(parts ...string) string {
	return (*CacheService)(nil).Key(parts...)
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

type publisherStub struct {
	published []events.TimetableEvent
}

func (p *publisherStub) Publish(ctx context.Context, event events.TimetableEvent) error {
	p.published = append(p.published, event)
	return nil
}

type generationRecorderStub struct {
	outcomes []string
}

func (m *generationRecorderStub) ObserveGeneration(outcome string, attempts, units int, duration time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
}
