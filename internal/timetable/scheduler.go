package timetable

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAttempts is the retry budget when none is configured.
	DefaultAttempts = 30
	// DefaultMaxPeriods is the per-day slot capacity when none is configured.
	DefaultMaxPeriods = 6
	// DefaultLabMarker identifies lab rooms by substring.
	DefaultLabMarker = "LAB"

	fallbackPlainRoom = "N/A"
)

var (
	// DefaultDays is the Monday to Friday teaching week.
	DefaultDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	// DefaultRooms are used when a group configures none.
	DefaultRooms = []string{"101", "102", "LAB-306"}

	errUnplaceable = errors.New("unit has no valid slot")
)

// RandomSource drives shuffling and slot choice. *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
	Int63() int64
}

// Options tune one scheduler.
type Options struct {
	Days       []string
	MaxPeriods int
	Rooms      []string
	Attempts   int
	LabMarker  string
	// Workers above 1 run attempts speculatively in parallel.
	Workers int
	Rand    RandomSource
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if len(o.Days) == 0 {
		o.Days = DefaultDays
	}
	if o.MaxPeriods <= 0 {
		o.MaxPeriods = DefaultMaxPeriods
	}
	if len(o.Rooms) == 0 {
		o.Rooms = DefaultRooms
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.LabMarker == "" {
		o.LabMarker = DefaultLabMarker
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Scheduler places units with a bounded-retry randomised greedy search.
// It is not safe for concurrent use because it owns its random source.
type Scheduler struct {
	opts      Options
	labRoom   string
	plainRoom string
}

// NewScheduler applies defaults and resolves room labels.
func NewScheduler(opts Options) *Scheduler {
	opts = opts.withDefaults()
	s := &Scheduler{opts: opts, labRoom: opts.LabMarker, plainRoom: fallbackPlainRoom}
	for _, room := range opts.Rooms {
		if strings.Contains(room, opts.LabMarker) {
			s.labRoom = room
			break
		}
	}
	for _, room := range opts.Rooms {
		if !strings.Contains(room, opts.LabMarker) {
			s.plainRoom = room
			break
		}
	}
	return s
}

// Options returns the effective options after defaults.
func (s *Scheduler) Options() Options {
	return s.opts
}

// Schedule runs up to Attempts shuffle-and-place passes and returns the first
// grid in which every unit was placed, with the number of attempts tried.
func (s *Scheduler) Schedule(ctx context.Context, units []Unit, classes []ClassConfig) (*Grid, int, error) {
	if s.opts.Workers > 1 {
		return s.scheduleParallel(ctx, units, classes)
	}
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}
		grid, err := s.attempt(ctx, units, classes, s.opts.Rand)
		if err == nil {
			s.opts.Logger.Debug("timetable attempt succeeded", zap.Int("attempt", attempt), zap.Int("units", len(units)))
			return grid, attempt, nil
		}
		if !errors.Is(err, errUnplaceable) {
			return nil, attempt, err
		}
		s.opts.Logger.Debug("timetable attempt failed", zap.Int("attempt", attempt))
	}
	return nil, s.opts.Attempts, &GenerationError{Attempts: s.opts.Attempts}
}

func (s *Scheduler) scheduleParallel(ctx context.Context, units []Unit, classes []ClassConfig) (*Grid, int, error) {
	seeds := make([]int64, s.opts.Attempts)
	for i := range seeds {
		seeds[i] = s.opts.Rand.Int63()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)
	group.SetLimit(s.opts.Workers)

	var (
		mu      sync.Mutex
		winner  *Grid
		winning int
		tried   int
	)
	for i := 0; i < s.opts.Attempts; i++ {
		if groupCtx.Err() != nil {
			break
		}
		attempt := i + 1
		seed := seeds[i]
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			mu.Lock()
			tried++
			mu.Unlock()

			grid, err := s.attempt(groupCtx, units, classes, rand.New(rand.NewSource(seed)))
			if err != nil {
				return nil
			}
			mu.Lock()
			if winner == nil {
				winner, winning = grid, attempt
			}
			mu.Unlock()
			cancel()
			return nil
		})
	}
	_ = group.Wait()

	if winner != nil {
		s.opts.Logger.Debug("timetable attempt succeeded", zap.Int("attempt", winning), zap.Int("tried", tried))
		return winner, tried, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, tried, err
	}
	return nil, tried, &GenerationError{Attempts: tried}
}

// attempt is one shuffle-and-greedy-place pass on a fresh grid.
func (s *Scheduler) attempt(ctx context.Context, units []Unit, classes []ClassConfig, rng RandomSource) (*Grid, error) {
	grid := newGrid(classes, s.opts.Days, s.opts.MaxPeriods)
	byName := make(map[string]ClassConfig, len(classes))
	for _, class := range classes {
		byName[class.Name] = class
	}

	order := shuffle(units, rng)
	candidates := make([][2]int, 0, len(s.opts.Days)*s.opts.MaxPeriods)
	for _, unit := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		class, ok := byName[unit.Class]
		if !ok || unit.Teacher == "" {
			return nil, errUnplaceable
		}

		candidates = candidates[:0]
		for d, day := range s.opts.Days {
			daily := class.PeriodsOn(day)
			if daily > s.opts.MaxPeriods {
				daily = s.opts.MaxPeriods
			}
			for p := 0; p < daily; p++ {
				if grid.occupied(class.Name, d, p) || grid.teacherBusy(unit.Teacher, d, p) {
					continue
				}
				candidates = append(candidates, [2]int{d, p})
			}
		}
		if len(candidates) == 0 {
			return nil, errUnplaceable
		}

		pick := candidates[rng.Intn(len(candidates))]
		grid.commit(unit, pick[0], pick[1], s.roomFor(unit))
	}
	return grid, nil
}

func (s *Scheduler) roomFor(unit Unit) string {
	if unit.IsLab {
		return s.labRoom
	}
	return s.plainRoom
}

// shuffle returns a Fisher-Yates permutation of units without mutating them.
func shuffle(units []Unit, rng RandomSource) []Unit {
	out := make([]Unit, len(units))
	copy(out, units)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
