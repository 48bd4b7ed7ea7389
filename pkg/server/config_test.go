package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":17171", cfg.Server.TCPAddr)
	assert.Equal(t, "General", cfg.Server.DefaultChannel)

	// The default file must round-trip through the parser.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
tcp_addr = ":7000"
welcome_text = "hi"

[handshake]
timeout_seconds = 5

[[handshake.game_versions]]
guid = "534ba248-a87c-4ce9-8bee-bc376aae6134"
name = "The Moon Project"

[[handshake.game_versions]]
guid = "c7bffb03-148a-441d-8146-c268ca8b3273"
name = "Lost Souls"

[commands]
unknown_policy = "forward_as_chat"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	fileCfg, err := LoadConfig(path)
	require.NoError(t, err)

	cfg, err := fileCfg.ToServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.TCPAddr)
	assert.Equal(t, "hi", cfg.WelcomeText)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, "forward_as_chat", cfg.UnknownPolicy)
	require.Len(t, cfg.GameVersions, 2)
	assert.Equal(t, "Lost Souls", cfg.GameVersions[1].Name)
}

func TestToServerConfigDefaults(t *testing.T) {
	cfg, err := (&TOMLConfig{}).ToServerConfig()
	require.NoError(t, err)

	assert.Equal(t, ":17171", cfg.TCPAddr)
	assert.Equal(t, "General", cfg.DefaultChannel)
	assert.Equal(t, 30*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, "drop", cfg.UnknownPolicy)
	assert.Equal(t, 1024, cfg.MaxCommandLength)
	require.Len(t, cfg.GameVersions, 1)
}

func TestToServerConfigRejectsBadValues(t *testing.T) {
	bad := TOMLConfig{}
	bad.Commands.UnknownPolicy = "mangle"
	_, err := bad.ToServerConfig()
	assert.Error(t, err)

	bad = TOMLConfig{}
	bad.Handshake.GameVersions = []GameVersionEntry{{GUID: "not-a-guid", Name: "x"}}
	_, err = bad.ToServerConfig()
	assert.Error(t, err)
}

func TestVersionIndex(t *testing.T) {
	cfg, err := (&TOMLConfig{}).ToServerConfig()
	require.NoError(t, err)

	idx, ok := cfg.VersionIndex(uuid.MustParse("534ba248-a87c-4ce9-8bee-bc376aae6134"))
	require.True(t, ok)
	assert.Equal(t, uint32(0), idx)

	_, ok = cfg.VersionIndex(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	assert.False(t, ok)
}
