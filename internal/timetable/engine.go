package timetable

import (
	"context"

	"go.uber.org/zap"
)

// Input is everything one generation call needs.
type Input struct {
	Subjects []Subject
	Teachers []Teacher
	Classes  []ClassConfig
}

// Result is the outcome of a successful generation call.
type Result struct {
	Timetables   map[string]Schedule
	PrimaryClass string
	Attempts     int
	Units        int
	Grid         *Grid
}

// Engine runs validation, expansion, scheduling and assembly in order.
type Engine struct {
	opts Options
}

// NewEngine builds an engine. The options are copied into a fresh Scheduler
// per call, so a shared Rand must not be set when the engine is used from
// several goroutines.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Generate builds a conflict-free week for every class or returns a typed error.
func (e *Engine) Generate(ctx context.Context, in Input) (*Result, error) {
	scheduler := NewScheduler(e.opts)
	opts := scheduler.Options()

	if err := Validate(in.Classes); err != nil {
		return nil, err
	}
	if err := ValidateCapacity(in.Classes, opts.Days, opts.MaxPeriods); err != nil {
		return nil, err
	}

	if missing := UnknownSubjects(in.Classes, in.Subjects); len(missing) > 0 {
		opts.Logger.Warn("assignments reference unknown subjects", zap.Strings("subjects", missing))
	}
	if pairs := UnqualifiedTeachers(in.Classes, in.Teachers); len(pairs) > 0 {
		opts.Logger.Warn("assignments name teachers outside their subjects", zap.Strings("pairs", pairs))
	}
	units := Expand(in.Classes, in.Subjects)

	grid, attempts, err := scheduler.Schedule(ctx, units, in.Classes)
	if err != nil {
		opts.Logger.Info("timetable generation failed", zap.Int("attempts", attempts), zap.Int("units", len(units)), zap.Error(err))
		return nil, err
	}
	opts.Logger.Info("timetable generated", zap.Int("attempts", attempts), zap.Int("units", len(units)))

	return &Result{
		Timetables:   Assemble(grid, in.Classes, opts.Days),
		PrimaryClass: in.Classes[0].Name,
		Attempts:     attempts,
		Units:        len(units),
		Grid:         grid,
	}, nil
}
