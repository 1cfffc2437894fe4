package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ModeReciprocal, cfg.Mode)
	assert.EqualValues(t, 100, cfg.TauMs)
	assert.EqualValues(t, 8, cfg.QueueLength)
	assert.False(t, cfg.BinaryFrames)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: gated\ntau_ms: 250\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeGated, cfg.Mode)
	assert.EqualValues(t, 250, cfg.TauMs)
	// untouched fields keep their defaults
	assert.EqualValues(t, 8, cfg.QueueLength)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_PartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adc_gain: 32\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 32, cfg.ADCGain)
	assert.Equal(t, ModeReciprocal, cfg.Mode)
	assert.EqualValues(t, 100, cfg.TauMs)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.TauMs = 500

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 500, loaded.TauMs)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "bogus"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FreqGPIO = GPIOUnused
	assert.Error(t, cfg.Validate())
}
