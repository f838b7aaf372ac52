package timetable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Subject is master reference data for one scheduling run.
type Subject struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	IsLab        bool   `json:"isLab"`
}

// Teacher lists the subject abbreviations a teacher may teach.
type Teacher struct {
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// TeacherList is the normalised teacher field of an assignment. It decodes
// from null, a single string or an array of strings.
type TeacherList []string

// UnmarshalJSON accepts the single-teacher and multi-teacher encodings.
func (t *TeacherList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = nil
		return nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return fmt.Errorf("decode teacher: %w", err)
		}
		*t = NewTeacherList(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return fmt.Errorf("decode teachers: %w", err)
	}
	*t = NewTeacherList(many...)
	return nil
}

// NewTeacherList trims names and drops blanks.
func NewTeacherList(names ...string) TeacherList {
	var list TeacherList
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		list = append(list, name)
	}
	return list
}

// SubjectAssignment requests Periods weekly lessons of Subject for a class.
type SubjectAssignment struct {
	Subject  string      `json:"subject"`
	Periods  int         `json:"periods"`
	Teachers TeacherList `json:"teacher"`
}

// ClassConfig describes one class: its per-day period budget and subject load.
type ClassConfig struct {
	Name             string              `json:"name"`
	PeriodsPerDay    map[string]int      `json:"periodsPerDay"`
	SubjectsAssigned []SubjectAssignment `json:"subjectsAssigned"`
}

// PeriodsOn returns the configured period count for day. Missing entries are 0.
func (c ClassConfig) PeriodsOn(day string) int {
	if c.PeriodsPerDay == nil {
		return 0
	}
	return c.PeriodsPerDay[day]
}

// AvailablePeriods sums the per-day period budget.
func (c ClassConfig) AvailablePeriods() int {
	total := 0
	for _, periods := range c.PeriodsPerDay {
		total += periods
	}
	return total
}

// AssignedPeriods sums the periods requested by all subject assignments.
func (c ClassConfig) AssignedPeriods() int {
	total := 0
	for _, assignment := range c.SubjectsAssigned {
		total += assignment.Periods
	}
	return total
}

// Unit is one indivisible single-period lesson waiting to be placed.
type Unit struct {
	Class       string
	Subject     string
	SubjectName string
	Teacher     string
	IsLab       bool
}

// Slot is one period of a class day. Nil fields mark an empty period.
type Slot struct {
	Period      int     `json:"period"`
	Subject     *string `json:"subject"`
	SubjectCode *string `json:"subjectCode,omitempty"`
	Teacher     *string `json:"teacher"`
	Room        *string `json:"room"`
	IsLab       bool    `json:"isLab"`
}

// Empty reports whether nothing has been placed in the slot.
func (s Slot) Empty() bool {
	return s.Subject == nil
}

// Day is the ordered list of slots for one weekday.
type Day struct {
	Day   string `json:"day"`
	Slots []Slot `json:"slots"`
}

// Schedule is the week of one class.
type Schedule []Day
