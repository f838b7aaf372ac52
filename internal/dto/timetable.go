package dto

import (
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// SubjectPayload describes one master subject.
type SubjectPayload struct {
	Name         string `json:"name" validate:"required"`
	Abbreviation string `json:"abbreviation" validate:"required"`
	IsLab        bool   `json:"isLab"`
}

// TeacherPayload describes a teacher and the subjects they may teach.
type TeacherPayload struct {
	Name     string   `json:"name" validate:"required"`
	Subjects []string `json:"subjects" validate:"omitempty,dive,required"`
}

// AssignmentPayload requests weekly lessons of one subject. The teacher field
// accepts a single name or a list.
type AssignmentPayload struct {
	Subject  string                `json:"subject" validate:"required"`
	Periods  int                   `json:"periods"`
	Teachers timetable.TeacherList `json:"teacher"`
}

// ClassPayload describes one class.
type ClassPayload struct {
	Name             string              `json:"name" validate:"required"`
	PeriodsPerDay    map[string]int      `json:"periodsPerDay" validate:"omitempty,dive,gte=0"`
	SubjectsAssigned []AssignmentPayload `json:"subjectsAssigned" validate:"dive"`
}

// SettingsPayload overrides generation defaults for a group.
type SettingsPayload struct {
	Days       []string `json:"days" validate:"omitempty,dive,required"`
	MaxPeriods int      `json:"maxPeriods" validate:"omitempty,gte=1,lte=24"`
	Rooms      []string `json:"rooms" validate:"omitempty,dive,required"`
	Attempts   int      `json:"attempts" validate:"omitempty,gte=1,lte=1000"`
}

// ConfigureTimetableRequest replaces a group's timetable configuration.
// Members lists the user ids that may read the timetable; leaving it out
// keeps the stored list.
type ConfigureTimetableRequest struct {
	Name     string           `json:"name" validate:"omitempty,max=128"`
	Members  []string         `json:"members" validate:"omitempty,dive,required"`
	Subjects []SubjectPayload `json:"subjects" validate:"dive"`
	Teachers []TeacherPayload `json:"teachers" validate:"dive"`
	Classes  []ClassPayload   `json:"classes" validate:"dive"`
	Settings *SettingsPayload `json:"settings" validate:"omitempty"`
}

// GenerateTimetableResponse is returned after a successful generation.
type GenerateTimetableResponse struct {
	Timetables   map[string]timetable.Schedule `json:"timetables"`
	PrimaryClass string                        `json:"primaryClass"`
	Attempts     int                           `json:"attempts"`
	Units        int                           `json:"units"`
	VersionID    string                        `json:"versionId,omitempty"`
}

// GenerateJobResponse acknowledges an asynchronous generation request.
type GenerateJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// UpdateTimetableRequest overwrites a stored timetable with a hand-edited one.
// The structure is stored as sent.
type UpdateTimetableRequest struct {
	Timetable types.JSONText `json:"timetable"`
}

// TimetableHistoryQuery pages through stored timetable versions.
type TimetableHistoryQuery struct {
	Page     int `form:"page" validate:"omitempty,gte=1"`
	PageSize int `form:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// TimetableExportQuery selects the class and format of an export.
type TimetableExportQuery struct {
	Class  string `form:"class"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}

// ExportedFile is a rendered export ready to be streamed.
type ExportedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
