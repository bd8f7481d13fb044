package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultInterval is the time between scheduled runs.
const DefaultInterval = 96 * time.Hour

// Schedule is the next-run file an external scheduler reads.
type Schedule struct {
	LastRun time.Time `json:"lastRun"`
	NextRun time.Time `json:"nextRun"`
}

// NewSchedule records a run that started and finished at the given times
// and schedules the next one interval after the start, the time the run's
// pages already advertise. A zero interval means DefaultInterval.
func NewSchedule(started, finished time.Time, interval time.Duration) Schedule {
	return Schedule{LastRun: finished.UTC(), NextRun: NextRun(started, interval)}
}

// NextRun is the time the run begun at started schedules its successor.
func NextRun(started time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return started.Add(interval).UTC()
}

// Due reports whether the next run time has been reached.
func (s Schedule) Due(now time.Time) bool {
	return !now.Before(s.NextRun)
}

// SaveSchedule writes s to path.
func SaveSchedule(path string, s Schedule) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("report: encode schedule: %w", err)
		}
		return nil
	})
}

// LoadSchedule reads the schedule at path. A missing file returns a zero
// Schedule, which is always due.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Schedule{}, nil
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("report: read schedule: %w", err)
	}
	var s Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return Schedule{}, fmt.Errorf("report: decode schedule %s: %w", path, err)
	}
	return s, nil
}
