package operatorview

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	config, err := configFromEnvironment(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, config.RefreshInterval)
	assert.Equal(t, 60*time.Second, config.TickInterval)
	assert.Equal(t, 5*time.Minute, config.OfflineThreshold)
	assert.Equal(t, "http://localhost:8080", config.APIURL)
}

func TestConfigEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
operator_view:
  refresh_interval: PT30S
  tick_interval: 2m
  roster_filter: Name startsWith "North"
  api_url: http://api.internal
`), 0o600))

	config, err := configFromEnvironment(map[string]string{
		"FIELDTRACK_CONFIG_FILE":       path,
		"FIELDTRACK_TICK_INTERVAL":     "45s",
		"FIELDTRACK_OFFLINE_THRESHOLD": "PT10M",
	})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, config.RefreshInterval)
	assert.Equal(t, 45*time.Second, config.TickInterval)
	assert.Equal(t, 10*time.Minute, config.OfflineThreshold)
	assert.Equal(t, `Name startsWith "North"`, config.RosterFilter)
	assert.Equal(t, "http://api.internal", config.APIURL)
}

func TestConfigRejectsBadDurations(t *testing.T) {
	_, err := configFromEnvironment(map[string]string{"FIELDTRACK_REFRESH_INTERVAL": "soon"})
	assert.Error(t, err)

	_, err = configFromEnvironment(map[string]string{"FIELDTRACK_TICK_INTERVAL": "0s"})
	assert.Error(t, err)
}
