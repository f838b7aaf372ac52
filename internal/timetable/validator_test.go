package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNoClasses(t *testing.T) {
	err := Validate(nil)
	require.ErrorIs(t, err, ErrNoClasses)
	assert.True(t, IsValidationError(err))
}

func TestValidatePeriodMismatch(t *testing.T) {
	classes := []ClassConfig{{
		Name:          "9B",
		PeriodsPerDay: map[string]int{"Mon": 2, "Tue": 2, "Wed": 2, "Thu": 2, "Fri": 2},
		SubjectsAssigned: []SubjectAssignment{
			{Subject: "MATH", Periods: 5, Teachers: NewTeacherList("Mrs.Roy")},
			{Subject: "ENG", Periods: 4, Teachers: NewTeacherList("Mr.Das")},
		},
	}}

	err := Validate(classes)
	var mismatch *PeriodMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "9B", mismatch.ClassName)
	assert.Equal(t, 10, mismatch.Available)
	assert.Equal(t, 9, mismatch.Assigned)
	assert.Contains(t, err.Error(), "9B")
	assert.Contains(t, err.Error(), "(10)")
	assert.Contains(t, err.Error(), "(9)")
}

func TestValidateMissingPeriodsPerDayCountsAsZero(t *testing.T) {
	classes := []ClassConfig{{
		Name:             "10A",
		PeriodsPerDay:    map[string]int{"Mon": 2},
		SubjectsAssigned: []SubjectAssignment{{Subject: "MATH", Periods: 2, Teachers: NewTeacherList("Mrs.Roy")}},
	}}
	assert.NoError(t, Validate(classes))
}

func TestValidateMissingTeacher(t *testing.T) {
	classes := []ClassConfig{{
		Name:             "10A",
		PeriodsPerDay:    map[string]int{"Mon": 2},
		SubjectsAssigned: []SubjectAssignment{{Subject: "MATH", Periods: 2}},
	}}

	err := Validate(classes)
	var missing *MissingTeacherError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "MATH", missing.Subject)
}

func TestValidateRejectsNonPositivePeriods(t *testing.T) {
	classes := []ClassConfig{{
		Name:          "10A",
		PeriodsPerDay: map[string]int{"Mon": 2},
		SubjectsAssigned: []SubjectAssignment{
			{Subject: "MATH", Periods: 3, Teachers: NewTeacherList("Mrs.Roy")},
			{Subject: "ART", Periods: -1, Teachers: NewTeacherList("Ms.Sen")},
		},
	}}

	var invalid *InvalidAssignmentError
	require.True(t, errors.As(Validate(classes), &invalid))
	assert.Equal(t, "ART", invalid.Subject)
}

func TestValidateDuplicateClass(t *testing.T) {
	class := ClassConfig{
		Name:             "10A",
		PeriodsPerDay:    map[string]int{"Mon": 1},
		SubjectsAssigned: []SubjectAssignment{{Subject: "MATH", Periods: 1, Teachers: NewTeacherList("Mrs.Roy")}},
	}
	var duplicate *DuplicateClassError
	require.True(t, errors.As(Validate([]ClassConfig{class, class}), &duplicate))
}

func TestValidateCapacity(t *testing.T) {
	days := []string{"Mon", "Tue"}

	t.Run("fits", func(t *testing.T) {
		classes := []ClassConfig{{Name: "10A", PeriodsPerDay: map[string]int{"Mon": 6, "Tue": 0, "Sat": 0}}}
		assert.NoError(t, ValidateCapacity(classes, days, 6))
	})

	t.Run("exceeds daily maximum", func(t *testing.T) {
		classes := []ClassConfig{{Name: "10A", PeriodsPerDay: map[string]int{"Mon": 7}}}
		var capacity *CapacityError
		require.True(t, errors.As(ValidateCapacity(classes, days, 6), &capacity))
		assert.Equal(t, 6, capacity.MaxPeriods)
	})

	t.Run("day outside week", func(t *testing.T) {
		classes := []ClassConfig{{Name: "10A", PeriodsPerDay: map[string]int{"Sat": 2}}}
		err := ValidateCapacity(classes, days, 6)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "not a scheduling day")
	})
}

func TestUnqualifiedTeachers(t *testing.T) {
	classes := []ClassConfig{{
		Name: "10A",
		SubjectsAssigned: []SubjectAssignment{
			{Subject: "MATH", Periods: 2, Teachers: NewTeacherList("Mrs.Roy", "Mr.Iyer")},
			{Subject: "PHY", Periods: 2, Teachers: NewTeacherList("Mrs.Roy")},
		},
	}}
	roster := []Teacher{{Name: "Mrs.Roy", Subjects: []string{"MATH"}}}

	assert.Equal(t, []string{"Mr.Iyer/MATH", "Mrs.Roy/PHY"}, UnqualifiedTeachers(classes, roster))
	assert.Empty(t, UnqualifiedTeachers(classes, nil))
}
