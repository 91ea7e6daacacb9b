package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MQTT_BROKER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Simulation.TickInterval())
	assert.Equal(t, int64(0), cfg.Simulation.Seed)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "smart_energy", cfg.MQTT.TopicPrefix)
	assert.False(t, cfg.Modbus.Enabled)
	assert.Equal(t, 9600, cfg.Modbus.BaudRate)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
simulation:
  tick_interval_ms: 250
  seed: 7
log:
  level: debug
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  topic_prefix: home
modbus:
  enabled: true
  address: 0.0.0.0:5020
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.TickInterval())
	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "home", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "0.0.0.0:5020", cfg.Modbus.Address)
	// untouched sections keep their defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BrokerFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("SMART_ENERGY_MQTT_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoad_PrefixedBrokerWins(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MQTT_BROKER", "tcp://fallback:1883")
	t.Setenv("SMART_ENERGY_MQTT_BROKER", "tcp://primary:1883")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tcp://primary:1883", cfg.MQTT.Broker)
}

func TestLoad_MQTTEnabledWithoutBroker(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("SMART_ENERGY_MQTT_ENABLED", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestTickInterval_NonPositiveFallsBack(t *testing.T) {
	assert.Equal(t, time.Second, SimulationConfig{TickIntervalMs: 0}.TickInterval())
	assert.Equal(t, time.Second, SimulationConfig{TickIntervalMs: -5}.TickInterval())
	assert.Equal(t, 10*time.Millisecond, SimulationConfig{TickIntervalMs: 10}.TickInterval())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
