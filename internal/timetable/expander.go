package timetable

// Expand flattens every subject assignment into single-period units. Multiple
// teachers rotate round-robin by unit index; an assignment without teachers
// yields units with an empty teacher, which the scheduler can never place.
func Expand(classes []ClassConfig, subjects []Subject) []Unit {
	lookup := make(map[string]Subject, len(subjects))
	for _, subject := range subjects {
		lookup[subject.Abbreviation] = subject
	}

	var units []Unit
	for _, class := range classes {
		for _, assignment := range class.SubjectsAssigned {
			detail, known := lookup[assignment.Subject]
			name := assignment.Subject
			if known && detail.Name != "" {
				name = detail.Name
			}
			for i := 0; i < assignment.Periods; i++ {
				units = append(units, Unit{
					Class:       class.Name,
					Subject:     assignment.Subject,
					SubjectName: name,
					Teacher:     rotateTeacher(assignment.Teachers, i),
					IsLab:       known && detail.IsLab,
				})
			}
		}
	}
	return units
}

// UnknownSubjects returns assignment subject codes missing from the master list.
func UnknownSubjects(classes []ClassConfig, subjects []Subject) []string {
	known := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		known[subject.Abbreviation] = struct{}{}
	}
	reported := make(map[string]struct{})
	var missing []string
	for _, class := range classes {
		for _, assignment := range class.SubjectsAssigned {
			if _, ok := known[assignment.Subject]; ok {
				continue
			}
			if _, ok := reported[assignment.Subject]; ok {
				continue
			}
			reported[assignment.Subject] = struct{}{}
			missing = append(missing, assignment.Subject)
		}
	}
	return missing
}

func rotateTeacher(teachers TeacherList, index int) string {
	if len(teachers) == 0 {
		return ""
	}
	return teachers[index%len(teachers)]
}
