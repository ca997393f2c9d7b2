package config

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// Config represents the ~/.tidepool/config.yaml file. Everything in it
// can also be set per invocation with flags; the file just changes the
// defaults.
type Config struct {
	Version string       `yaml:"version"`
	Log     LogConfig    `yaml:"log"`
	Target  TargetConfig `yaml:"target"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"TIDEPOOL_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty"`
}

// TargetConfig describes the machine the debugged binary runs on. It
// only matters when evaluating against a raw memory dump or a remote
// stub; for local binaries the image headers win.
type TargetConfig struct {
	// AddressSize is the pointer width in bytes, 4 or 8.
	AddressSize int `yaml:"address_size,omitempty"`
	// ByteOrder is "little" or "big".
	ByteOrder string `yaml:"byte_order,omitempty"`
}
