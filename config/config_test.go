package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "::1", cfg.RPC.Address)
	require.Equal(t, uint16(7076), cfg.RPC.Port)
	require.False(t, cfg.RPC.EnableControl)
	require.Equal(t, uint64(16384), cfg.RPC.FrontierRequestLimit)
	require.Equal(t, uint64(16384), cfg.RPC.ChainRequestLimit)

	// the default file must have been written and reload cleanly
	_, err = os.Stat(path)
	require.NoError(t, err)
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPortBounds(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[rpc]\nport = 65535\n"))
	require.NoError(t, err)
	require.Equal(t, uint16(65535), cfg.RPC.Port)

	_, err = Load(writeConfig(t, "[rpc]\nport = 65536\n"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "[rpc]\nbogus = true\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.RPC.Port = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Node.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RPC.Address = ""
	require.Error(t, cfg.Validate())

	// the bind address must parse, not merely be non-empty
	cfg = Default()
	cfg.RPC.Address = "not-an-ip"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RPC.Address = "0.0.0.0"
	require.NoError(t, cfg.Validate())
}
