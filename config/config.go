package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// RPCConfig controls the JSON request server.
type RPCConfig struct {
	Address              string `toml:"address"`
	Port                 uint16 `toml:"port"`
	EnableControl        bool   `toml:"enable_control"`
	FrontierRequestLimit uint64 `toml:"frontier_request_limit"`
	ChainRequestLimit    uint64 `toml:"chain_request_limit"`
	LogRPC               bool   `toml:"log_rpc"`
}

// NodeConfig controls storage and peering.
type NodeConfig struct {
	DataDir       string   `toml:"data_dir"`
	PeeringPort   uint16   `toml:"peering_port"`
	Preconfigured []string `toml:"preconfigured_peers"`
	LogFile       string   `toml:"log_file"`
	LogMaxSizeMB  int      `toml:"log_max_size_mb"`
}

type Config struct {
	RPC  RPCConfig  `toml:"rpc"`
	Node NodeConfig `toml:"node"`
}

// Default returns the configuration a fresh install runs with: RPC bound
// to loopback only, control actions disabled.
func Default() *Config {
	return &Config{
		RPC: RPCConfig{
			Address:              "::1",
			Port:                 7076,
			EnableControl:        false,
			FrontierRequestLimit: 16384,
			ChainRequestLimit:    16384,
			LogRPC:               true,
		},
		Node: NodeConfig{
			DataDir:       "./rai-data",
			PeeringPort:   7075,
			Preconfigured: []string{},
			LogMaxSizeMB:  16,
		},
	}
}

// Load loads the configuration from the given path, writing the defaults
// out first when no file exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded.String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if _, err := netip.ParseAddr(c.RPC.Address); err != nil {
		return fmt.Errorf("rpc address %q is not a valid IP address", c.RPC.Address)
	}
	if c.RPC.Port == 0 {
		return fmt.Errorf("rpc port must not be zero")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	return nil
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
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
