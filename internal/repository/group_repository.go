package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// GroupRepository persists timetable groups: configuration plus the current timetable.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

type groupRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	OwnerID   string         `db:"owner_id"`
	Members   types.JSONText `db:"members"`
	Subjects  types.JSONText `db:"subjects"`
	Teachers  types.JSONText `db:"teachers"`
	Classes   types.JSONText `db:"classes"`
	Settings  types.JSONText `db:"settings"`
	Timetable types.JSONText `db:"timetable"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *GroupRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a group by its identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, owner_id, members, subjects, teachers, classes, settings, timetable, created_at, updated_at FROM timetable_groups WHERE id = $1`
	var row groupRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel()
}

// FindAccess loads only the ownership columns of a group.
func (r *GroupRepository) FindAccess(ctx context.Context, id string) (*models.GroupAccess, error) {
	const query = `SELECT id, owner_id, members FROM timetable_groups WHERE id = $1`
	var row struct {
		ID      string         `db:"id"`
		OwnerID string         `db:"owner_id"`
		Members types.JSONText `db:"members"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	access := &models.GroupAccess{ID: row.ID, OwnerID: row.OwnerID}
	if len(row.Members) > 0 {
		if err := row.Members.Unmarshal(&access.Members); err != nil {
			return nil, fmt.Errorf("decode group members: %w", err)
		}
	}
	return access, nil
}

// SaveConfiguration creates the group or replaces its configuration. The
// stored timetable is left untouched. An existing owner is never replaced.
func (r *GroupRepository) SaveConfiguration(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	if group == nil {
		return fmt.Errorf("group payload is nil")
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	row, err := newGroupRow(group)
	if err != nil {
		return err
	}

	const query = `
INSERT INTO timetable_groups (id, name, owner_id, members, subjects, teachers, classes, settings, timetable, created_at, updated_at)
VALUES (:id, :name, :owner_id, :members, :subjects, :teachers, :classes, :settings, :timetable, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	owner_id = CASE WHEN timetable_groups.owner_id = '' THEN EXCLUDED.owner_id ELSE timetable_groups.owner_id END,
	members = EXCLUDED.members,
	subjects = EXCLUDED.subjects,
	teachers = EXCLUDED.teachers,
	classes = EXCLUDED.classes,
	settings = EXCLUDED.settings,
	updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, row); err != nil {
		return fmt.Errorf("save timetable group configuration: %w", err)
	}
	return nil
}

// AppendSubject adds one subject to the group's master list.
func (r *GroupRepository) AppendSubject(ctx context.Context, id string, subject timetable.Subject) error {
	payload, err := json.Marshal([]timetable.Subject{subject})
	if err != nil {
		return fmt.Errorf("encode subject: %w", err)
	}
	const query = `UPDATE timetable_groups SET subjects = COALESCE(subjects, '[]'::jsonb) || $1::jsonb, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, types.JSONText(payload), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("append timetable subject: %w", err)
	}
	return requireAffected(result, "append timetable subject")
}

// UpdateTimetable overwrites the stored timetable document.
func (r *GroupRepository) UpdateTimetable(ctx context.Context, exec sqlx.ExtContext, id string, document types.JSONText) error {
	const query = `UPDATE timetable_groups SET timetable = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, document, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable: %w", err)
	}
	return requireAffected(result, "update timetable")
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func newGroupRow(group *models.Group) (*groupRow, error) {
	row := &groupRow{
		ID:        group.ID,
		Name:      group.Name,
		OwnerID:   group.OwnerID,
		Timetable: group.Timetable,
		CreatedAt: group.CreatedAt,
		UpdatedAt: group.UpdatedAt,
	}
	if len(row.Timetable) == 0 {
		row.Timetable = types.JSONText(`{}`)
	}
	fields := []struct {
		name  string
		value interface{}
		dest  *types.JSONText
	}{
		{"members", nonNilMembers(group.Members), &row.Members},
		{"subjects", nonNilSubjects(group.Subjects), &row.Subjects},
		{"teachers", nonNilTeachers(group.Teachers), &row.Teachers},
		{"classes", nonNilClasses(group.Classes), &row.Classes},
		{"settings", group.Settings, &row.Settings},
	}
	for _, field := range fields {
		raw, err := json.Marshal(field.value)
		if err != nil {
			return nil, fmt.Errorf("encode group %s: %w", field.name, err)
		}
		*field.dest = types.JSONText(raw)
	}
	return row, nil
}

func (row groupRow) toModel() (*models.Group, error) {
	group := &models.Group{
		ID:        row.ID,
		Name:      row.Name,
		OwnerID:   row.OwnerID,
		Timetable: row.Timetable,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	fields := []struct {
		name string
		raw  types.JSONText
		dest interface{}
	}{
		{"members", row.Members, &group.Members},
		{"subjects", row.Subjects, &group.Subjects},
		{"teachers", row.Teachers, &group.Teachers},
		{"classes", row.Classes, &group.Classes},
		{"settings", row.Settings, &group.Settings},
	}
	for _, field := range fields {
		if len(field.raw) == 0 {
			continue
		}
		if err := field.raw.Unmarshal(field.dest); err != nil {
			return nil, fmt.Errorf("decode group %s: %w", field.name, err)
		}
	}
	return group, nil
}

func nonNilMembers(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func nonNilSubjects(items []timetable.Subject) []timetable.Subject {
	if items == nil {
		return []timetable.Subject{}
	}
	return items
}

func nonNilTeachers(items []timetable.Teacher) []timetable.Teacher {
	if items == nil {
		return []timetable.Teacher{}
	}
	return items
}

func nonNilClasses(items []timetable.ClassConfig) []timetable.ClassConfig {
	if items == nil {
		return []timetable.ClassConfig{}
	}
	return items
}
