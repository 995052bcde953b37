// Package config loads the Runner and Recorder JSON/YAML config documents
// described in spec §6, in the teacher's layered style: environment
// variables override the file, the file overrides built-in defaults.
// Load's strict argument turns a parse error or a missing required field into a fatal
// abort naming the offending field, matching "Config parse error — fatal"
// from the error-handling design; non-strict mode logs and falls back to
// defaults.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyfitech/corebus/internal/recorder"
	"github.com/cyfitech/corebus/internal/sched"
)

// fileDoc mirrors the on-disk document: {"recorder": {...}} at the top
// level, with the runner fields alongside it so one file can describe both
// subsystems.
type fileDoc struct {
	ThreadNum    uint64           `json:"thread_num" yaml:"thread_num"`
	AlwaysActive uint64           `json:"always_active" yaml:"always_active"`
	ActiveMS     uint64           `json:"active_ms" yaml:"active_ms"`
	Recorder     *recorder.Config `json:"recorder" yaml:"recorder"`
}

// Loaded holds the fully resolved configuration for both subsystems.
type Loaded struct {
	Runner   sched.Config
	Recorder recorder.Config
}

// Load reads path (YAML if its extension is .yaml/.yml, JSON otherwise),
// applies environment overrides, and validates. strict controls whether a
// parse error or missing required field (period_sec on a snapshot
// interval) is fatal or merely logged with defaults substituted.
//
// An empty path is valid: it produces the all-defaults configuration,
// still subject to environment overrides.
func Load(path string, strict bool) (*Loaded, error) {
	doc := fileDoc{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return failOrDefault(strict, fmt.Errorf("config: read %s: %w", path, err))
		}
		if err := unmarshalDoc(path, raw, &doc); err != nil {
			return failOrDefault(strict, fmt.Errorf("config: parse %s: %w", path, err))
		}
	}

	if doc.Recorder == nil {
		doc.Recorder = &recorder.Config{}
	}
	if err := validateSnapshotIntervals(doc.Recorder.SnapshotIntervals); err != nil {
		return failOrDefault(strict, err)
	}

	applyEnvOverrides(&doc)

	loaded := &Loaded{
		Runner: sched.Config{
			ThreadNum:             int(doc.ThreadNum),
			AlwaysActiveThreadNum: int(doc.AlwaysActive),
			ActiveTime:            time.Duration(doc.ActiveMS) * time.Millisecond,
		},
		Recorder: *doc.Recorder,
	}
	log.Printf("config: loaded thread_num=%d always_active=%d active_ms=%d record_dir=%q snapshot_intervals=%d",
		doc.ThreadNum, doc.AlwaysActive, doc.ActiveMS, doc.Recorder.RecordDir, len(doc.Recorder.SnapshotIntervals))
	return loaded, nil
}

func unmarshalDoc(path string, raw []byte, doc *fileDoc) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(raw, doc)
	default:
		return json.Unmarshal(raw, doc)
	}
}

// validateSnapshotIntervals enforces the one required field in the
// recorder schema (period_sec) and fills in the max_num_of_copies default.
func validateSnapshotIntervals(intervals []recorder.SnapshotIntervalConfig) error {
	for i := range intervals {
		if intervals[i].PeriodSec == 0 {
			return fmt.Errorf("config: snapshot_intervals[%d].period_sec is required", i)
		}
		if intervals[i].MaxNumOfCopies == 0 {
			intervals[i].MaxNumOfCopies = recorder.DefaultMaxNumOfCopies
		}
	}
	return nil
}

func failOrDefault(strict bool, err error) (*Loaded, error) {
	if strict {
		log.Fatalf("%v", err)
	}
	log.Printf("config: %v; falling back to defaults", err)
	return &Loaded{Recorder: recorder.Config{}}, nil
}

func applyEnvOverrides(doc *fileDoc) {
	if v := os.Getenv("COREBUS_THREAD_NUM"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			doc.ThreadNum = n
		}
	}
	if v := os.Getenv("COREBUS_ALWAYS_ACTIVE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			doc.AlwaysActive = n
		}
	}
	if v := os.Getenv("COREBUS_ACTIVE_MS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			doc.ActiveMS = n
		}
	}
	if v := os.Getenv("COREBUS_RECORD_DIR"); v != "" {
		doc.Recorder.RecordDir = v
	}
}
