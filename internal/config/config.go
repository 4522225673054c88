// Package config decodes the optional TOML file carrying extraction
// tunables spec leaves to "a setter on F": worker-pool thread count,
// whether extract_netlist folds nets sharing a label, and the default
// net/circuit/device cell name prefixes build_all_nets uses when
// rebuilding a hierarchy. None of it is required — a Facade with no
// config file runs single-threaded with empty prefixes, identical to
// its hard-coded zero-value defaults.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"netextract/internal/extract"
	"netextract/internal/netshape"
)

// Config is the decoded shape of a config TOML file.
type Config struct {
	Threads         int  `toml:"threads"`
	JoinNetsByLabel bool `toml:"join_nets_by_label"`

	Rebuild RebuildConfig `toml:"rebuild"`
}

// RebuildConfig holds the name prefixes build_all_nets/build_net use
// when a target cell needs to be synthesized rather than reused.
type RebuildConfig struct {
	NetCellNamePrefix     string `toml:"net_cell_name_prefix"`
	CircuitCellNamePrefix string `toml:"circuit_cell_name_prefix"`
	DeviceCellNamePrefix  string `toml:"device_cell_name_prefix"`
}

// Default returns the zero-config baseline: single-threaded, no label
// join, no cell-name prefixes (so build_all_nets draws each net straight
// into its circuit's cell instead of a dedicated net cell; circuit and
// device cells are still created, named after their source cell or
// device kind).
func Default() Config {
	return Config{Threads: 1}
}

// Load decodes path as a TOML config file. A missing file is not an
// error — it reports Default() unchanged, so callers can unconditionally
// Load an optional config path without a separate existence check.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return cfg, nil
}

// Apply installs Threads on f, the one tunable a Facade exposes a
// setter for outside its constructor.
func (c Config) Apply(f *extract.Facade) {
	f.SetThreads(c.Threads)
}

// BuildOptions renders the rebuild prefixes as netshape.BuildOptions,
// leaving the scale and layer map for the caller to fill in — those are
// per-target-layout values a config file has no way to know about.
func (c Config) BuildOptions() netshape.BuildOptions {
	return netshape.BuildOptions{
		NetCellNamePrefix:     c.Rebuild.NetCellNamePrefix,
		CircuitCellNamePrefix: c.Rebuild.CircuitCellNamePrefix,
		DeviceCellNamePrefix:  c.Rebuild.DeviceCellNamePrefix,
	}
}
