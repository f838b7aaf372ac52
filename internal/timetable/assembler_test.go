package timetable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleTrimsToConfiguredPeriods(t *testing.T) {
	classes := []ClassConfig{{
		Name:             "10A",
		PeriodsPerDay:    map[string]int{"Mon": 2, "Wed": 4},
		SubjectsAssigned: []SubjectAssignment{{Subject: "MATH", Periods: 6, Teachers: NewTeacherList("Mrs.Roy")}},
	}}
	grid, _, err := NewScheduler(Options{Rand: seeded(5)}).Schedule(context.Background(), Expand(classes, nil), classes)
	require.NoError(t, err)

	schedule := AssembleClass(grid, classes[0], DefaultDays)
	require.Len(t, schedule, len(DefaultDays))
	lengths := map[string]int{}
	for _, day := range schedule {
		lengths[day.Day] = len(day.Slots)
		for i, slot := range day.Slots {
			assert.Equal(t, i+1, slot.Period)
			assert.False(t, slot.Empty())
		}
	}
	assert.Equal(t, map[string]int{"Mon": 2, "Tue": 0, "Wed": 4, "Thu": 0, "Fri": 0}, lengths)
}

func TestAssembleKeepsUntouchedSlotsEmpty(t *testing.T) {
	class := ClassConfig{Name: "10A", PeriodsPerDay: map[string]int{"Mon": 3}}
	grid := newGrid([]ClassConfig{class}, DefaultDays, DefaultMaxPeriods)

	schedule := AssembleClass(grid, class, DefaultDays)
	require.Len(t, schedule[0].Slots, 3)
	for _, slot := range schedule[0].Slots {
		assert.Nil(t, slot.Subject)
		assert.Nil(t, slot.Teacher)
		assert.Nil(t, slot.Room)
	}
}

func TestAssembleReturnsEveryClass(t *testing.T) {
	classes := sampleSchool()
	grid, _, err := NewScheduler(Options{Rand: seeded(11)}).Schedule(context.Background(), Expand(classes, sampleSubjects()), classes)
	require.NoError(t, err)

	timetables := Assemble(grid, classes, DefaultDays)
	require.Len(t, timetables, 2)
	assert.Len(t, timetables["10B"][0].Slots, 5)
	assert.Len(t, timetables["10B"][1].Slots, 3)
}
