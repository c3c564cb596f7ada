// Package config loads the static, file-based deployment configuration a
// flashqosd process starts from: which CPUs to pin workers to, which NVMe
// devices to drive, which device calibration table to use, the scheduler
// mode, and the per-4KiB read/write cost model. Grounded on the teacher's
// sim.LoadPolicyBundle: strict YAML decoding (unknown keys rejected) plus a
// Validate pass against a name registry.
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level deployment configuration for one flashqosd
// process.
type Config struct {
	// CPUs lists the CPU ids flashqosd pins one worker goroutine to each.
	CPUs []int `yaml:"cpus"`

	// NVMeDevices lists the device paths this process drives (one shared
	// FlashIO instance fans out across all of them; out of scope here).
	NVMeDevices []string `yaml:"nvme_devices"`

	// DeviceModel names the calibration table to look up latency-SLO ->
	// token-rate conversions against. Must be a key of Calibration, or the
	// built-in "unbounded" name (DeviceModel.Lookup always returns +Inf).
	DeviceModel string `yaml:"nvme_device_model"`

	// Calibration holds named device calibration tables, keyed by the name
	// referenced from DeviceModel; typically one entry read from a deploy's
	// device-specific config file, but the schema allows several so a
	// single file can describe a mixed fleet.
	Calibration map[string][]CalibrationPoint `yaml:"device_calibration"`

	// Scheduler selects the sub-round-1 LC ordering strategy; see
	// ValidSchedulerNames.
	Scheduler string `yaml:"scheduler"`

	// QueueCapacity bounds every SoftwareQueue's depth.
	QueueCapacity int `yaml:"queue_capacity"`

	// Cost is the read/write cost-per-4KiB-chunk model.
	Cost CostConfig `yaml:"cost"`
}

// CalibrationPoint mirrors flashqos.CalibrationPoint's YAML shape, kept
// independent of the flashqos package so config has no import-time
// dependency on the scheduling engine's internal types.
type CalibrationPoint struct {
	LatencyP95Us         uint32  `yaml:"latency_p95_us"`
	MaxTokenRate         float64 `yaml:"max_token_rate"`
	MaxReadonlyTokenRate float64 `yaml:"max_readonly_token_rate"`
}

// CostConfig is the per-4KiB-chunk token cost for reads and writes.
type CostConfig struct {
	ReadCost4K  int64 `yaml:"read_cost_4k"`
	WriteCost4K int64 `yaml:"write_cost_4k"`
}

// Load reads and strictly parses a YAML deployment configuration from path.
// Unrecognized keys (typos) are rejected, matching the teacher's
// LoadPolicyBundle.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flashqos config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing flashqos config: %w", err)
	}
	return &cfg, nil
}

// validSchedulers is the scheduler-mode name registry: the full set spec
// §6.3 enumerates, including modes this module accepts as configuration
// values but does not implement (flashqos.NewLCOrder returns
// ErrSchedulerNotImplemented for those).
var validSchedulers = map[string]bool{
	"off": true, "less_v0": true, "less_v1": true, "less_v2": true,
	"reflex": true, "reflex_rr": true, "wfq": true, "wdrr": true,
}

// IsValidScheduler returns true if name is a recognized scheduler mode.
func IsValidScheduler(name string) bool { return validSchedulers[name] }

// ValidSchedulerNames returns the sorted list of recognized scheduler
// modes.
func ValidSchedulerNames() []string {
	names := make([]string, 0, len(validSchedulers))
	for k := range validSchedulers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration's internal consistency: a recognized
// scheduler mode, a non-empty CPU list, a device model name that is either
// "unbounded" or names a non-empty table in Calibration, and non-negative
// cost values.
func (c *Config) Validate() error {
	if !validSchedulers[c.Scheduler] {
		return fmt.Errorf("unknown scheduler %q; valid options: %s", c.Scheduler, strings.Join(ValidSchedulerNames(), ", "))
	}
	if len(c.CPUs) == 0 {
		return fmt.Errorf("cpus must list at least one CPU id")
	}
	if c.DeviceModel != "unbounded" {
		points, ok := c.Calibration[c.DeviceModel]
		if !ok {
			return fmt.Errorf("nvme_device_model %q has no matching device_calibration table", c.DeviceModel)
		}
		if len(points) == 0 {
			return fmt.Errorf("device_calibration table %q has no calibration points", c.DeviceModel)
		}
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.Cost.ReadCost4K < 0 || c.Cost.WriteCost4K < 0 {
		return fmt.Errorf("cost.read_cost_4k and cost.write_cost_4k must be non-negative")
	}
	return nil
}
