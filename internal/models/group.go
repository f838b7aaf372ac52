package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// GroupSettings overrides the generation defaults for one group. Zero values
// fall back to the service configuration.
type GroupSettings struct {
	Days       []string `json:"days,omitempty"`
	MaxPeriods int      `json:"maxPeriods,omitempty"`
	Rooms      []string `json:"rooms,omitempty"`
	Attempts   int      `json:"attempts,omitempty"`
}

// Group owns one timetable configuration and the timetable built from it.
// Timetable holds the stored per-class schedule map exactly as it was last
// written, whether generated or edited by hand.
type Group struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	OwnerID   string                  `json:"owner_id"`
	Members   []string                `json:"members"`
	Subjects  []timetable.Subject     `json:"subjects"`
	Teachers  []timetable.Teacher     `json:"teachers"`
	Classes   []timetable.ClassConfig `json:"classes"`
	Settings  GroupSettings           `json:"settings"`
	Timetable types.JSONText          `json:"timetable"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// GroupAccess is the part of a group that decides who may use it.
type GroupAccess struct {
	ID      string
	OwnerID string
	Members []string
}

// Claimed reports whether the group has an owner. Groups created before
// ownership was recorded have none.
func (a GroupAccess) Claimed() bool {
	return a.OwnerID != ""
}

// IsOwner reports whether userID owns the group.
func (a GroupAccess) IsOwner(userID string) bool {
	return userID != "" && a.OwnerID == userID
}

// CanRead reports whether userID owns or is a member of the group.
func (a GroupAccess) CanRead(userID string) bool {
	if a.IsOwner(userID) {
		return true
	}
	for _, member := range a.Members {
		if userID != "" && member == userID {
			return true
		}
	}
	return false
}

// TimetableSource records how a stored timetable version was produced.
type TimetableSource string

const (
	TimetableSourceGenerated TimetableSource = "GENERATED"
	TimetableSourceManual    TimetableSource = "MANUAL"
)

// TimetableVersion is an immutable snapshot of a group's timetable.
type TimetableVersion struct {
	ID        string          `db:"id" json:"id"`
	GroupID   string          `db:"group_id" json:"group_id"`
	Version   int             `db:"version" json:"version"`
	Source    TimetableSource `db:"source" json:"source"`
	Timetable types.JSONText  `db:"timetable" json:"timetable"`
	Meta      types.JSONText  `db:"meta" json:"meta"`
	CreatedBy string          `db:"created_by" json:"created_by"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// GenerationJobStatus tracks asynchronous generation.
type GenerationJobStatus string

const (
	GenerationJobPending   GenerationJobStatus = "PENDING"
	GenerationJobRunning   GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed    GenerationJobStatus = "FAILED"
)

// GenerationJob is the cached state of one asynchronous generation request.
type GenerationJob struct {
	ID        string              `json:"id"`
	GroupID   string              `json:"group_id"`
	Status    GenerationJobStatus `json:"status"`
	Attempts  int                 `json:"attempts,omitempty"`
	Error     string              `json:"error,omitempty"`
	VersionID string              `json:"version_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}
