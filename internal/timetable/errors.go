package timetable

import (
	"errors"
	"fmt"
)

var (
	// ErrNoClasses is returned when a run has no classes configured.
	ErrNoClasses = errors.New("you must define at least one class")
	// ErrGenerationFailed matches every *GenerationError.
	ErrGenerationFailed = errors.New("timetable generation failed")
)

// PeriodMismatchError reports a class whose available and assigned totals differ.
type PeriodMismatchError struct {
	ClassName string
	Available int
	Assigned  int
}

func (e *PeriodMismatchError) Error() string {
	return fmt.Sprintf("class '%s': total available periods (%d) do not match total periods assigned to subjects (%d)",
		e.ClassName, e.Available, e.Assigned)
}

// MissingTeacherError reports an assignment without any usable teacher.
type MissingTeacherError struct {
	ClassName string
	Subject   string
}

func (e *MissingTeacherError) Error() string {
	return fmt.Sprintf("class '%s': subject '%s' has no teacher assigned", e.ClassName, e.Subject)
}

// InvalidAssignmentError reports an assignment with a non-positive period count.
type InvalidAssignmentError struct {
	ClassName string
	Subject   string
	Periods   int
}

func (e *InvalidAssignmentError) Error() string {
	return fmt.Sprintf("class '%s': subject '%s' must have a positive number of periods, got %d",
		e.ClassName, e.Subject, e.Periods)
}

// DuplicateClassError reports two classes sharing a name.
type DuplicateClassError struct {
	ClassName string
}

func (e *DuplicateClassError) Error() string {
	return fmt.Sprintf("class '%s' is defined more than once", e.ClassName)
}

// CapacityError reports a class day that cannot fit into the scheduling week.
type CapacityError struct {
	ClassName  string
	Day        string
	Periods    int
	MaxPeriods int
}

func (e *CapacityError) Error() string {
	if e.MaxPeriods == 0 {
		return fmt.Sprintf("class '%s': %d periods configured on '%s', which is not a scheduling day",
			e.ClassName, e.Periods, e.Day)
	}
	return fmt.Sprintf("class '%s': %d periods configured on '%s' exceed the daily maximum of %d",
		e.ClassName, e.Periods, e.Day, e.MaxPeriods)
}

// GenerationError is returned when every attempt failed to place all units.
type GenerationError struct {
	Attempts int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("could not find a valid timetable after %d attempts; check the configuration for scheduling conflicts", e.Attempts)
}

// Is lets errors.Is(err, ErrGenerationFailed) match.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// IsValidationError reports whether err is a configuration error raised before
// any placement was attempted.
func IsValidationError(err error) bool {
	if errors.Is(err, ErrNoClasses) {
		return true
	}
	var (
		mismatch  *PeriodMismatchError
		missing   *MissingTeacherError
		invalid   *InvalidAssignmentError
		duplicate *DuplicateClassError
		capacity  *CapacityError
	)
	return errors.As(err, &mismatch) ||
		errors.As(err, &missing) ||
		errors.As(err, &invalid) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &capacity)
}
