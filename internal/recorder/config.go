package recorder

// SnapshotIntervalConfig is one entry of the recorder config's
// snapshot_intervals array (spec §6).
type SnapshotIntervalConfig struct {
	Name           string `json:"name" yaml:"name"`
	PeriodSec      uint64 `json:"period_sec" yaml:"period_sec"`
	MaxNumOfCopies uint64 `json:"max_num_of_copies" yaml:"max_num_of_copies"`
}

// Config is the recorder section of the JSON/YAML config file: record_dir
// plus zero or more snapshot intervals.
type Config struct {
	RecordDir         string                   `json:"record_dir" yaml:"record_dir"`
	SnapshotIntervals []SnapshotIntervalConfig `json:"snapshot_intervals" yaml:"snapshot_intervals"`
}

// DefaultMaxNumOfCopies is used whenever a snapshot interval config omits
// max_num_of_copies.
const DefaultMaxNumOfCopies = 48
