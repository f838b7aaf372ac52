package timetable

// Grid is the occupancy state of one scheduling attempt: every class cell and
// the teachers committed at each (day, period). A grid belongs to exactly one
// attempt and is discarded when that attempt fails.
type Grid struct {
	days       []string
	maxPeriods int
	cells      map[string][][]Slot
	busy       [][]map[string]struct{}
	filled     int
}

func newGrid(classes []ClassConfig, days []string, maxPeriods int) *Grid {
	g := &Grid{
		days:       days,
		maxPeriods: maxPeriods,
		cells:      make(map[string][][]Slot, len(classes)),
		busy:       make([][]map[string]struct{}, len(days)),
	}
	for d := range days {
		g.busy[d] = make([]map[string]struct{}, maxPeriods)
		for p := 0; p < maxPeriods; p++ {
			g.busy[d][p] = make(map[string]struct{})
		}
	}
	for _, class := range classes {
		week := make([][]Slot, len(days))
		for d := range days {
			week[d] = make([]Slot, maxPeriods)
			for p := 0; p < maxPeriods; p++ {
				week[d][p] = Slot{Period: p + 1}
			}
		}
		g.cells[class.Name] = week
	}
	return g
}

// Days returns the scheduling week the grid was built for.
func (g *Grid) Days() []string {
	return g.days
}

// MaxPeriods returns the per-day slot capacity of every class.
func (g *Grid) MaxPeriods() int {
	return g.maxPeriods
}

// Filled counts placed units across all classes.
func (g *Grid) Filled() int {
	return g.filled
}

// Slot returns the cell for class on day at the 1-based period.
func (g *Grid) Slot(class, day string, period int) (Slot, bool) {
	week, ok := g.cells[class]
	if !ok || period < 1 || period > g.maxPeriods {
		return Slot{}, false
	}
	d := g.dayIndex(day)
	if d < 0 {
		return Slot{}, false
	}
	return week[d][period-1], true
}

// TeachersAt returns the teachers committed on day at the 1-based period.
func (g *Grid) TeachersAt(day string, period int) []string {
	d := g.dayIndex(day)
	if d < 0 || period < 1 || period > g.maxPeriods {
		return nil
	}
	teachers := make([]string, 0, len(g.busy[d][period-1]))
	for teacher := range g.busy[d][period-1] {
		teachers = append(teachers, teacher)
	}
	return teachers
}

func (g *Grid) dayIndex(day string) int {
	for i, name := range g.days {
		if name == day {
			return i
		}
	}
	return -1
}

func (g *Grid) occupied(class string, d, p int) bool {
	return !g.cells[class][d][p].Empty()
}

func (g *Grid) teacherBusy(teacher string, d, p int) bool {
	_, busy := g.busy[d][p][teacher]
	return busy
}

func (g *Grid) commit(unit Unit, d, p int, room string) {
	subject := unit.SubjectName
	if subject == "" {
		subject = unit.Subject
	}
	code := unit.Subject
	teacher := unit.Teacher
	g.cells[unit.Class][d][p] = Slot{
		Period:      p + 1,
		Subject:     &subject,
		SubjectCode: &code,
		Teacher:     &teacher,
		Room:        &room,
		IsLab:       unit.IsLab,
	}
	g.busy[d][p][unit.Teacher] = struct{}{}
	g.filled++
}
