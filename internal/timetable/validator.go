package timetable

// Validate checks the structural consistency of a class configuration. It is a
// pure function and never touches the scheduler.
func Validate(classes []ClassConfig) error {
	if len(classes) == 0 {
		return ErrNoClasses
	}
	seen := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		if _, dup := seen[class.Name]; dup {
			return &DuplicateClassError{ClassName: class.Name}
		}
		seen[class.Name] = struct{}{}

		for _, assignment := range class.SubjectsAssigned {
			if assignment.Periods <= 0 {
				return &InvalidAssignmentError{ClassName: class.Name, Subject: assignment.Subject, Periods: assignment.Periods}
			}
		}

		available := class.AvailablePeriods()
		assigned := class.AssignedPeriods()
		if available != assigned {
			return &PeriodMismatchError{ClassName: class.Name, Available: available, Assigned: assigned}
		}

		for _, assignment := range class.SubjectsAssigned {
			if len(assignment.Teachers) == 0 {
				return &MissingTeacherError{ClassName: class.Name, Subject: assignment.Subject}
			}
		}
	}
	return nil
}

// ValidateCapacity checks that every configured class day exists in the week
// and fits within maxPeriods.
func ValidateCapacity(classes []ClassConfig, days []string, maxPeriods int) error {
	week := make(map[string]struct{}, len(days))
	for _, day := range days {
		week[day] = struct{}{}
	}
	for _, class := range classes {
		for day, periods := range class.PeriodsPerDay {
			if periods == 0 {
				continue
			}
			if _, ok := week[day]; !ok {
				return &CapacityError{ClassName: class.Name, Day: day, Periods: periods}
			}
			if periods < 0 || periods > maxPeriods {
				return &CapacityError{ClassName: class.Name, Day: day, Periods: periods, MaxPeriods: maxPeriods}
			}
		}
	}
	return nil
}

// UnqualifiedTeachers lists "teacher/subject" pairs where an assignment names a
// teacher missing from the roster or not qualified for the subject. An empty
// roster disables the check.
func UnqualifiedTeachers(classes []ClassConfig, teachers []Teacher) []string {
	if len(teachers) == 0 {
		return nil
	}
	roster := make(map[string]map[string]struct{}, len(teachers))
	for _, teacher := range teachers {
		subjects := make(map[string]struct{}, len(teacher.Subjects))
		for _, subject := range teacher.Subjects {
			subjects[subject] = struct{}{}
		}
		roster[teacher.Name] = subjects
	}
	seen := make(map[string]struct{})
	var out []string
	for _, class := range classes {
		for _, assignment := range class.SubjectsAssigned {
			for _, name := range assignment.Teachers {
				subjects, known := roster[name]
				if known {
					if _, qualified := subjects[assignment.Subject]; qualified {
						continue
					}
				}
				pair := name + "/" + assignment.Subject
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				out = append(out, pair)
			}
		}
	}
	return out
}
