package config

// Log configures the zap logger and its rotated log file.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
	Env        string `toml:"Env"`
}

// Pauses holds the operator kill switches, one per module.
type Pauses struct {
	Marketplace bool `toml:"Marketplace"`
}

// Telemetry configures OpenTelemetry tracing of marketplace operations.
type Telemetry struct {
	// Exporter is none, stdout or otlp.
	Exporter    string  `toml:"Exporter"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}
