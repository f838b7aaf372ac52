package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrVersionConflict is returned when another writer took the version number
// first.
var ErrVersionConflict = errors.New("timetable version already exists")

const uniqueViolation = pq.ErrorCode("23505")

// TimetableVersionRepository persists immutable timetable snapshots per group.
type TimetableVersionRepository struct {
	db *sqlx.DB
}

// NewTimetableVersionRepository constructs repository.
func NewTimetableVersionRepository(db *sqlx.DB) *TimetableVersionRepository {
	return &TimetableVersionRepository{db: db}
}

func (r *TimetableVersionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a snapshot assigning the next version for the group.
// Inside a transaction the group row stays locked until commit, so concurrent
// writers of one group are numbered one after the other.
func (r *TimetableVersionRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.TimetableVersion) error {
	if version == nil {
		return fmt.Errorf("timetable version payload is nil")
	}
	if version.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.Source == "" {
		version.Source = models.TimetableSourceGenerated
	}
	if len(version.Timetable) == 0 {
		version.Timetable = types.JSONText(`{}`)
	}
	if len(version.Meta) == 0 {
		version.Meta = types.JSONText(`{}`)
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const lockQuery = `SELECT id FROM timetable_groups WHERE id = $1 FOR UPDATE`
	var locked string
	if err := sqlx.GetContext(ctx, target, &locked, lockQuery, version.GroupID); err != nil {
		return fmt.Errorf("lock timetable group: %w", err)
	}

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_versions WHERE group_id = $1`
	if err := sqlx.GetContext(ctx, target, &version.Version, nextVersionQuery, version.GroupID); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_versions (id, group_id, version, source, timetable, meta, created_by, created_at)
VALUES (:id, :group_id, :version, :source, :timetable, :meta, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, version); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert timetable version %d: %w", version.Version, ErrVersionConflict)
		}
		return fmt.Errorf("insert timetable version: %w", err)
	}
	return nil
}

// ListByGroup returns one page of versions, newest first, and the total count.
func (r *TimetableVersionRepository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]models.TimetableVersion, int, error) {
	var total int
	const countQuery = `SELECT COUNT(*) FROM timetable_versions WHERE group_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, groupID); err != nil {
		return nil, 0, fmt.Errorf("count timetable versions: %w", err)
	}

	const query = `SELECT id, group_id, version, source, timetable, meta, created_by, created_at
FROM timetable_versions WHERE group_id = $1 ORDER BY version DESC LIMIT $2 OFFSET $3`
	versions := make([]models.TimetableVersion, 0)
	if err := r.db.SelectContext(ctx, &versions, query, groupID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list timetable versions: %w", err)
	}
	return versions, total, nil
}
