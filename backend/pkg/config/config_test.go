package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cogbot/backend/pkg/errors"
)

func TestLoadCogs_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadCogs(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCogs(), cfg)
}

func TestLoadCogs_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogs.yaml")
	content := `
disabled: [medal]
greeting:
  channel_id: "42"
  timezone: Europe/Berlin
kicker:
  needle: spam
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadCogs(path)
	require.NoError(t, err)

	assert.Equal(t, "42", cfg.Greeting.ChannelID)
	assert.Equal(t, "Europe/Berlin", cfg.Greeting.Timezone)
	// Untouched fields keep their defaults
	assert.Equal(t, "1240917116329263135", cfg.Greeting.OKEmoji)
	assert.Equal(t, "spam", cfg.Kicker.Needle)
	assert.Equal(t, "793150452430274601", cfg.Kicker.WatchChannelID)

	assert.False(t, cfg.Enabled("medal"))
	assert.True(t, cfg.Enabled("greeting"))
}

func TestLoadCogs_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kicker:\n  needle: \"\"\n"), 0o644))

	_, err := LoadCogs(path)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("COGS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("COMMAND_PREFIX", "?")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("CLIENT_ID", "id")
	t.Setenv("CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.CommandPrefix)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.HasXrelCredentials())
	assert.NotNil(t, cfg.Cogs)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{CommandPrefix: "!", HTTPTimeout: time.Second}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.CommandPrefix = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Neo4jURI = "bolt://localhost:7687"
	assert.Error(t, c.Validate())

	c = base()
	c.XrelClientID = "only-id"
	assert.Error(t, c.Validate())
}
