package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "ipcap.yaml", `
log:
  level: debug
  file:
    path: /var/log/ipcap.log
profiles: /etc/ipcap/profiles.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/ipcap.log", cfg.Log.File.Path)
	assert.Equal(t, "/etc/ipcap/profiles.yaml", cfg.Profiles)
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "ipcap.yaml", "{}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Profiles)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadProfiles(t *testing.T) {
	path := writeFile(t, "profiles.yaml", `
profiles:
  rtp:
    first_packet: 10
    last_time_offset: 5000000
    vlan_ids: [10, 20]
    protocols: [udp]
    source: "10.0.0.1:5004"
    bidirectional: true
    wildcard_learning: true
  everything: {}
`)
	pf, err := LoadProfiles(path)
	require.NoError(t, err)

	rtp, err := pf.Get("rtp")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), rtp.FirstPacket)
	assert.Equal(t, int64(5_000_000), rtp.LastTimeOffset)
	assert.Equal(t, []uint32{10, 20}, rtp.VLANIDs)
	assert.Equal(t, []string{"udp"}, rtp.Protocols)
	assert.Equal(t, "10.0.0.1:5004", rtp.Source)
	assert.True(t, rtp.Bidirectional)
	assert.True(t, rtp.WildcardLearning)

	empty, err := pf.Get("everything")
	require.NoError(t, err)
	assert.Equal(t, FilterProfile{}, empty)

	_, err = pf.Get("nonexistent")
	assert.Error(t, err)
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadProfilesInvalidYAML(t *testing.T) {
	path := writeFile(t, "profiles.yaml", "profiles: [not a map\n")
	_, err := LoadProfiles(path)
	assert.Error(t, err)
}
