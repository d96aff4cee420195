package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: America/New_York
store:
  driver: bogus
feeds:
  - id: team
    name: Team
    url: https://cal.example.com/team.ics
basic_auth:
  username: admin
  password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, 180, cfg.HorizonDays)
	assert.Equal(t, 30, cfg.BackfillDays)
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "team", cfg.Feeds[0].ID)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"timezone":     "timezone: Mars/Olympus\n",
		"feed missing": "feeds:\n  - id: a\n",
		"feed dup":     "feeds:\n  - {id: a, url: http://x}\n  - {id: a, url: http://y}\n",
		"yaml":         "listen: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Store.Driver = DriverMemory
	cfg.Feeds = append(cfg.Feeds, FeedConfig{ID: "team", URL: "https://cal.example.com/a.ics"})
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	assert.Error(t, Save("", cfg))
	assert.Error(t, Save(path, nil))
}
