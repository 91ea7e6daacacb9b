package homeassistant

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const DiscoveryPrefix = "homeassistant"

// Publisher is the part of an MQTT client needed to announce sensors.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

func ObjectID(globalName, name string) string {
	return globalName + "_" + strings.Replace(strings.ToLower(name), " ", "_", -1)
}

func ConfigTopic(globalName string, item ConfigurationItem) string {
	return DiscoveryPrefix + "/sensor/" + ObjectID(globalName, item.Name) + "/config"
}

// SendConfigurationToHa publishes one retained discovery message per item.
func SendConfigurationToHa(client Publisher, config []ConfigurationItem, globalName string, timeout time.Duration) error {
	for _, configItem := range config {
		b, err := json.Marshal(configItem)
		if err != nil {
			return fmt.Errorf("failed to encode discovery for %s: %w", configItem.Name, err)
		}
		token := client.Publish(ConfigTopic(globalName, configItem), 0, true, b)
		if !token.WaitTimeout(timeout) {
			return fmt.Errorf("timeout publishing discovery for %s", configItem.Name)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish discovery for %s: %w", configItem.Name, err)
		}
	}
	return nil
}
