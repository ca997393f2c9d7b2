package config

// Default returns a config with sensible defaults: info-level pretty
// logging and no target profile override.
func Default() *Config {
	return &Config{
		Version: SchemaVersion,
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
