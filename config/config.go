package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultMarketAddress is the escrow vault used by a fresh sandbox.
	DefaultMarketAddress = "0x00000000000000000000000000000000004d4b54"
	// DefaultOwner administers a fresh sandbox.
	DefaultOwner = "0x000000000000000000000000000000000000000a"
)

type Config struct {
	DataDir         string    `toml:"DataDir"`
	Backend         string    `toml:"Backend"`
	MarketAddress   string    `toml:"MarketAddress"`
	Owner           string    `toml:"Owner"`
	FeeRecipient    string    `toml:"FeeRecipient"`
	TradingFeeBps   uint32    `toml:"TradingFeeBps"`
	MaxPrice        string    `toml:"MaxPrice"`
	PayoutPolicy    string    `toml:"PayoutPolicy"`
	DebugAssertions bool      `toml:"DebugAssertions"`
	Log             Log       `toml:"Log"`
	Pauses          Pauses    `toml:"Pauses"`
	Telemetry       Telemetry `toml:"Telemetry"`
}

// Default returns the configuration written for a fresh sandbox.
func Default() *Config {
	return &Config{
		DataDir:         "./nftmarket-data",
		Backend:         "leveldb",
		MarketAddress:   DefaultMarketAddress,
		Owner:           DefaultOwner,
		TradingFeeBps:   250,
		PayoutPolicy:    "push",
		DebugAssertions: true,
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Env:        "local",
		},
		Telemetry: Telemetry{Exporter: "none"},
	}
}

// Load loads the configuration from the given path, writing the default
// configuration there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
