package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// State is the on-disk watermark for incremental runs. When no explicit
// start date is configured, the next run extracts events inserted at or
// after the watermark. The watermark is the previous run's start time, not
// its end time: events inserted while a run was in flight may have been
// missed by late pages, so they are re-read (at-least-once).
type State struct {
	WatermarkUTC time.Time `yaml:"watermark_utc"`
	LastRunUTC   time.Time `yaml:"last_run_utc"`
	LastLoaded   int64     `yaml:"last_loaded"`
}

// LoadState reads the state file. A missing file is a fresh start and
// returns (nil, nil).
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &st, nil
}

// SaveState writes the state file. Called only after a fully successful run.
func SaveState(path string, st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
