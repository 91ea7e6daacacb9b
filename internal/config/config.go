package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Modbus     ModbusConfig     `mapstructure:"modbus"`
}

type SimulationConfig struct {
	TickIntervalMs int   `mapstructure:"tick_interval_ms"`
	Seed           int64 `mapstructure:"seed"` // 0 = seeded from the clock
}

// TickInterval returns the monitor period, falling back to one second.
func (s SimulationConfig) TickInterval() time.Duration {
	if s.TickIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Discovery   bool   `mapstructure:"discovery"`
}

type ModbusConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	SerialDevice string `mapstructure:"serial_device"`
	BaudRate     int    `mapstructure:"baud_rate"`
}

// Load reads config.yaml from the working directory (or ./config) and the
// SMART_ENERGY_* environment. A missing file is not an error.
func Load() (*Config, error) {
	return load(viper.New(), "")
}

// LoadFile reads an explicit configuration file.
func LoadFile(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetDefault("simulation.tick_interval_ms", 1000)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "smart-energy")
	v.SetDefault("mqtt.topic_prefix", "smart_energy")
	v.SetDefault("mqtt.discovery", true)
	v.SetDefault("modbus.enabled", false)
	v.SetDefault("modbus.address", "127.0.0.1:1502")
	v.SetDefault("modbus.serial_device", "")
	v.SetDefault("modbus.baud_rate", 9600)

	v.SetEnvPrefix("smart_energy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.MQTT.Broker == "" {
		config.MQTT.Broker = os.Getenv("MQTT_BROKER")
	}
	if config.MQTT.Username == "" {
		config.MQTT.Username = os.Getenv("MQTT_USERNAME")
	}
	if config.MQTT.Password == "" {
		config.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}

	if config.MQTT.Enabled && config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt enabled but no broker configured")
	}

	return &config, nil
}
