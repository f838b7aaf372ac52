package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

type settings struct {
	Days       []string `json:"days"`
	MaxPeriods int      `json:"maxPeriods"`
	Rooms      []string `json:"rooms"`
	Attempts   int      `json:"attempts"`
}

type config struct {
	Subjects []timetable.Subject     `json:"subjects"`
	Teachers []timetable.Teacher     `json:"teachers"`
	Classes  []timetable.ClassConfig `json:"classes"`
	Settings settings                `json:"settings"`
}

type runResult struct {
	Seed     int64
	Attempts int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		configPath string
		seed       int64
		runs       int
		workers    int
		outPath    string
		timeout    time.Duration
	)

	flag.StringVar(&configPath, "config", "timetable.json", "Path to a group configuration JSON file")
	flag.Int64Var(&seed, "seed", 1, "Seed of the first run; later runs use seed+1, seed+2, ...")
	flag.IntVar(&runs, "runs", 1, "Number of seeded generations to try")
	flag.IntVar(&workers, "workers", 1, "Parallel attempts per generation")
	flag.StringVar(&outPath, "out", "", "Write the first successful timetable as JSON to this path")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Timeout per generation")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		results []runResult
		first   *timetable.Result
	)
	for i := 0; i < runs; i++ {
		res, out := generate(cfg, seed+int64(i), workers, timeout)
		if res.Err == nil && first == nil {
			first = out
		}
		if timetable.IsValidationError(res.Err) {
			log.Fatalf("configuration rejected: %v", res.Err)
		}
		results = append(results, res)
	}

	printReport(results)

	if first != nil {
		printSchedules(first)
		if outPath != "" {
			if err := writeJSON(outPath, first.Timetables); err != nil {
				log.Fatalf("failed to write %s: %v", outPath, err)
			}
		}
	}
	if first == nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Classes) == 0 {
		return nil, fmt.Errorf("no classes defined in %s", path)
	}
	return &cfg, nil
}

func generate(cfg *config, seed int64, workers int, timeout time.Duration) (runResult, *timetable.Result) {
	engine := timetable.NewEngine(timetable.Options{
		Days:       cfg.Settings.Days,
		MaxPeriods: cfg.Settings.MaxPeriods,
		Rooms:      cfg.Settings.Rooms,
		Attempts:   cfg.Settings.Attempts,
		Workers:    workers,
		Rand:       rand.New(rand.NewSource(seed)),
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	out, err := engine.Generate(ctx, timetable.Input{Subjects: cfg.Subjects, Teachers: cfg.Teachers, Classes: cfg.Classes})
	res := runResult{Seed: seed, Duration: time.Since(start), Err: err}
	var genErr *timetable.GenerationError
	switch {
	case err == nil:
		res.Attempts = out.Attempts
	case errors.As(err, &genErr):
		res.Attempts = genErr.Attempts
	}
	return res, out
}

func printReport(results []runResult) {
	fmt.Println("Timetable Preview Report")
	fmt.Println("========================")
	succeeded := 0
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "FAIL"
		} else {
			succeeded++
		}
		fmt.Printf("[%s] seed=%d attempts=%d (%s)\n", status, res.Seed, res.Attempts, res.Duration)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
		}
	}
	fmt.Printf("Succeeded: %d/%d\n", succeeded, len(results))
}

func printSchedules(result *timetable.Result) {
	classes := make([]string, 0, len(result.Timetables))
	for name := range result.Timetables {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	for _, name := range classes {
		fmt.Printf("\n%s\n", name)
		for _, day := range result.Timetables[name] {
			cells := make([]string, 0, len(day.Slots))
			for _, slot := range day.Slots {
				if slot.Empty() {
					cells = append(cells, "-")
					continue
				}
				cells = append(cells, fmt.Sprintf("%s(%s)", *slot.Subject, *slot.Teacher))
			}
			fmt.Printf("  %-4s %s\n", day.Day, strings.Join(cells, " | "))
		}
	}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
