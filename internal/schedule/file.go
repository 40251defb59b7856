package schedule

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
)

type fileConfig struct {
	Course struct {
		ProgramStart string   `toml:"program_start"`
		WeekOneEnd   string   `toml:"week_one_end"`
		WeekOneDates []string `toml:"week_one_dates"`
		Weekdays     []string `toml:"weekdays"`
		TotalWeeks   int      `toml:"total_weeks"`
		TotalTeams   int      `toml:"total_teams"`
		Timezone     string   `toml:"timezone"`
	} `toml:"course"`
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// LoadFile reads a course calendar from a TOML file. Missing keys keep their
// DefaultConfig values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading course file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a TOML course calendar and validates it.
func Parse(data []byte) (*Config, error) {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("error decoding course file: %w", err)
	}

	cfg := DefaultConfig()
	c := fc.Course
	if c.ProgramStart != "" {
		cfg.ProgramStart = c.ProgramStart
	}
	if c.WeekOneEnd != "" {
		cfg.WeekOneEnd = c.WeekOneEnd
	}
	if c.WeekOneDates != nil {
		cfg.WeekOneDates = c.WeekOneDates
	}
	if len(c.Weekdays) > 0 {
		cfg.Weekdays = cfg.Weekdays[:0:0]
		for _, name := range c.Weekdays {
			key := strings.ToLower(name)
			if len(key) > 3 {
				key = key[:3]
			}
			wd, ok := weekdayNames[key]
			if !ok {
				return nil, fmt.Errorf("unknown weekday %q", name)
			}
			cfg.Weekdays = append(cfg.Weekdays, wd)
		}
	}
	if c.TotalWeeks > 0 {
		cfg.TotalWeeks = c.TotalWeeks
	}
	if c.TotalTeams > 0 {
		cfg.TotalTeams = c.TotalTeams
	}
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
