package timetable

// Assemble renders every configured class from the grid, keyed by class name.
func Assemble(grid *Grid, classes []ClassConfig, days []string) map[string]Schedule {
	out := make(map[string]Schedule, len(classes))
	for _, class := range classes {
		out[class.Name] = AssembleClass(grid, class, days)
	}
	return out
}

// AssembleClass renders one class week. Each day is trimmed to the class's
// configured period count; slots past it are dropped.
func AssembleClass(grid *Grid, class ClassConfig, days []string) Schedule {
	schedule := make(Schedule, 0, len(days))
	for _, day := range days {
		count := class.PeriodsOn(day)
		if grid != nil && count > grid.MaxPeriods() {
			count = grid.MaxPeriods()
		}
		if count < 0 {
			count = 0
		}
		slots := make([]Slot, 0, count)
		for period := 1; period <= count; period++ {
			slot := Slot{Period: period}
			if grid != nil {
				if cell, ok := grid.Slot(class.Name, day, period); ok {
					slot = cell
				}
			}
			slots = append(slots, slot)
		}
		schedule = append(schedule, Day{Day: day, Slots: slots})
	}
	return schedule
}
