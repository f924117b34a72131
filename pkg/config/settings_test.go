package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkin.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, "remote:\n  member_id: member-1\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Queue.MaxSize)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, time.Second, cfg.Queue.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Queue.BackoffCap)
	assert.Equal(t, 150.0, cfg.Geofence.RadiusMeters)
	assert.Equal(t, 12*time.Hour, cfg.Geofence.MaxSession())
	assert.Equal(t, 3, cfg.Geofence.ExitThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "none", cfg.Broker.Type)
	assert.Equal(t, "member-1", cfg.Remote.MemberID)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := writeConfig(t, `
geofence:
  center_latitude: 55.6761
  center_longitude: 12.5683
  radius_meters: 200
  max_session_hours: 8
queue:
  max_size: 10
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 55.6761, cfg.Geofence.CenterLatitude)
	assert.Equal(t, 200.0, cfg.Geofence.RadiusMeters)
	assert.Equal(t, 8*time.Hour, cfg.Geofence.MaxSession())
	assert.Equal(t, 10, cfg.Queue.MaxSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHECKIN_GEOFENCE_RADIUS_METERS", "75")
	t.Setenv("CHECKIN_QUEUE_MAX_RETRIES", "5")

	dir := writeConfig(t, "")
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 75.0, cfg.Geofence.RadiusMeters)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
}

func TestValidateRejectsNonPositiveRadius(t *testing.T) {
	cfg := &Settings{}
	*cfg = Settings{
		Geofence: GeofenceSettings{RadiusMeters: 0, MaxSessionHours: 12, ExitThreshold: 3},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDatabaseType(t *testing.T) {
	dir := writeConfig(t, "database:\n  type: cassandra\n")
	_, err := Load(dir)
	assert.Error(t, err)
}
