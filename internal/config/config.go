// Package config loads the inspector's small key-value configuration file.
//
// A missing file, a malformed file, or a missing key never fails the
// process (spec §7 item 6, "Config or OUI file malformed"); every lookup
// falls back to the documented default.
package config

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

const DefaultFileName = "inspector_config.json"

// Config holds the options enumerated in spec.md §6.
type Config struct {
	// UseInMemoryDB selects an ephemeral :memory: SQLite database when
	// true (the default); when false, the store is written to DBFile so
	// it can be inspected after a run for debugging.
	UseInMemoryDB bool `json:"use_in_memory_db"`
	// DBFile is only consulted when UseInMemoryDB is false.
	DBFile string `json:"db_file"`
	// InspectEveryDeviceByDefault seeds devices.is_inspected on insert.
	InspectEveryDeviceByDefault bool `json:"inspect_every_device_by_default"`
}

// Default returns the configuration used when no file is present or the
// file can't be parsed.
func Default() Config {
	return Config{
		UseInMemoryDB:               true,
		DBFile:                      "inspector-debug.sqlite",
		InspectEveryDeviceByDefault: false,
	}
}

// Load reads path (typically colocated with the binary) and overlays any
// recognized keys onto Default(). Errors are logged, never returned: the
// caller always gets a usable Config.
func Load(path string, log *zap.Logger) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("error reading config file, using defaults", zap.String("path", path), zap.Error(err))
		} else {
			log.Info("config file not found, using defaults", zap.String("path", path))
		}
		return cfg
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Error("config file is not valid JSON, using defaults", zap.String("path", path), zap.Error(err))
		return cfg
	}

	if v, ok := raw["use_in_memory_db"]; ok {
		_ = json.Unmarshal(v, &cfg.UseInMemoryDB)
	}
	if v, ok := raw["db_file"]; ok {
		_ = json.Unmarshal(v, &cfg.DBFile)
	}
	if v, ok := raw["inspect_every_device_by_default"]; ok {
		_ = json.Unmarshal(v, &cfg.InspectEveryDeviceByDefault)
	}

	log.Info("loaded config file", zap.String("path", path))
	return cfg
}
