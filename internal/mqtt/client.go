package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"smart-energy/internal/config"
	"smart-energy/internal/homeassistant"
	"smart-energy/internal/models"
	"smart-energy/internal/simulation"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// Client exports the simulated readings to an MQTT broker and accepts
// refresh requests on <prefix>/refresh/set.
type Client struct {
	client    mqtt.Client
	publisher homeassistant.Publisher
	config    *config.Config
	logger    *logrus.Logger
	system    *simulation.EnergySystem

	mutex       sync.Mutex
	unsubscribe []func()
}

func NewClient(cfg *config.Config, system *simulation.EnergySystem, logger *logrus.Logger) (*Client, error) {
	if cfg.MQTT.Broker == "" {
		return nil, fmt.Errorf("no MQTT broker configured")
	}

	c := newClient(cfg, system, logger, nil)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID + "-" + uuid.NewString()[:8])
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetWill(c.availabilityTopic(), "offline", 1, true)

	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetOnConnectHandler(c.onConnect)

	c.client = mqtt.NewClient(opts)
	c.publisher = c.client

	return c, nil
}

func newClient(cfg *config.Config, system *simulation.EnergySystem, logger *logrus.Logger, publisher homeassistant.Publisher) *Client {
	return &Client{
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		system:    system,
	}
}

func (c *Client) Connect() error {
	c.logger.Info("Connecting to MQTT broker...")

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.watch()
	c.logger.Info("Connected to MQTT broker")
	return nil
}

func (c *Client) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker...")
	c.unwatch()

	token := c.client.Publish(c.availabilityTopic(), 1, true, "offline")
	token.WaitTimeout(publishTimeout)
	c.client.Disconnect(250)
}

func (c *Client) watch() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.unsubscribe = append(c.unsubscribe, c.system.Subscribe(c.onSystemChange))
	for _, p := range c.system.SecurityParameters() {
		param := p
		c.unsubscribe = append(c.unsubscribe, param.Subscribe(func(field models.Field) {
			c.onParameterChange(param, field)
		}))
	}
}

func (c *Client) unwatch() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("MQTT connected, subscribing to topics...")

	if token := client.Subscribe(c.refreshTopic(), 1, c.handleRefreshMessage); token.Wait() && token.Error() != nil {
		c.logger.Errorf("Failed to subscribe to refresh topic: %v", token.Error())
	} else {
		c.logger.Infof("Subscribed to refresh topic: %s", c.refreshTopic())
	}

	c.announce()
}

// announce publishes availability, discovery and the full current state.
func (c *Client) announce() {
	c.publish(c.availabilityTopic(), "online")

	if c.config.MQTT.Discovery {
		err := homeassistant.SendConfigurationToHa(c.publisher, c.discoveryItems(), c.config.MQTT.TopicPrefix, publishTimeout)
		if err != nil {
			c.logger.Errorf("Failed to publish Home Assistant discovery: %v", err)
		}
	}

	c.publishAll()
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Errorf("MQTT connection lost: %v", err)
}

func (c *Client) handleRefreshMessage(client mqtt.Client, msg mqtt.Message) {
	c.logger.Debugf("Received refresh request on %s: %s", msg.Topic(), string(msg.Payload()))
	c.system.Refresh()
}

func (c *Client) onSystemChange(field models.Field) {
	if field == simulation.FieldEnergySystem {
		c.publishAll()
		return
	}

	value, ok := c.system.Snapshot().Value(field)
	if !ok {
		return
	}
	c.publish(c.readingTopic(field), formatValue(value))
}

func (c *Client) onParameterChange(p *models.SecurityParameter, field models.Field) {
	switch field {
	case models.FieldValue:
		c.publish(c.parameterTopic(p.Name(), "value"), formatValue(p.Value()))
	case models.FieldMinValue:
		c.publish(c.parameterTopic(p.Name(), "min_value"), formatValue(p.MinValue()))
	case models.FieldMaxValue:
		c.publish(c.parameterTopic(p.Name(), "max_value"), formatValue(p.MaxValue()))
	case models.FieldIsNormal:
		c.publish(c.parameterTopic(p.Name(), "status"), p.Status().String())
	}
}

func (c *Client) publishAll() {
	snapshot := c.system.Snapshot()

	for _, field := range simulation.ReadingFields {
		value, _ := snapshot.Value(field)
		c.publish(c.readingTopic(field), formatValue(value))
	}

	for _, p := range snapshot.SecurityParameters {
		c.publish(c.parameterTopic(p.Name, "value"), formatValue(p.Value))
		c.publish(c.parameterTopic(p.Name, "min_value"), formatValue(p.MinValue))
		c.publish(c.parameterTopic(p.Name, "max_value"), formatValue(p.MaxValue))
		c.publish(c.parameterTopic(p.Name, "status"), p.Status.String())
	}
}

// publish does not wait for delivery: listeners run inside the tick
// dispatch and must not block on the network.
func (c *Client) publish(topic, payload string) {
	token := c.publisher.Publish(topic, 0, true, payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			c.logger.Errorf("Failed to publish %s: %v", topic, err)
		}
	default:
	}
}

func (c *Client) discoveryItems() []homeassistant.ConfigurationItem {
	prefix := c.config.MQTT.TopicPrefix
	device := homeassistant.Device{
		Identifiers: []string{prefix},
		Name:        "Smart Energy Simulator",
		Model:       "simulated",
	}

	readings := []struct {
		field models.Field
		name  string
		unit  homeassistant.Unit
	}{
		{simulation.FieldWindPower, "Wind Power", homeassistant.KW},
		{simulation.FieldSolarPower, "Solar Power", homeassistant.KW},
		{simulation.FieldTotalPower, "Total Power", homeassistant.KW},
		{simulation.FieldHouseholdPower, "Household Power", homeassistant.KW},
		{simulation.FieldBatteryPercentage, "Battery", homeassistant.Percent},
	}

	var items []homeassistant.ConfigurationItem
	for _, r := range readings {
		items = append(items, homeassistant.ConfigurationItem{
			DeviceClass:       homeassistant.DeviceClassFor(r.unit),
			UnitOfMeasurement: r.unit,
			Device:            device,
			StateClass:        "measurement",
			UniqueId:          prefix + "_" + string(r.field),
			Name:              r.name,
			StateTopic:        c.readingTopic(r.field),
			AvailabilityTopic: c.availabilityTopic(),
		})
	}

	for _, p := range c.system.SecurityParameters() {
		unit := homeassistant.UnitFor(p.Unit())
		items = append(items,
			homeassistant.ConfigurationItem{
				DeviceClass:       homeassistant.DeviceClassFor(unit),
				UnitOfMeasurement: unit,
				Device:            device,
				StateClass:        "measurement",
				UniqueId:          prefix + "_" + topicName(p.Name()),
				Name:              titleCase(p.Name()),
				StateTopic:        c.parameterTopic(p.Name(), "value"),
				AvailabilityTopic: c.availabilityTopic(),
			},
			homeassistant.ConfigurationItem{
				DeviceClass:       homeassistant.Enum,
				Device:            device,
				UniqueId:          prefix + "_" + topicName(p.Name()) + "_status",
				Name:              titleCase(p.Name()) + " Status",
				StateTopic:        c.parameterTopic(p.Name(), "status"),
				AvailabilityTopic: c.availabilityTopic(),
				Options:           []string{models.StatusNormal.String(), models.StatusAbnormal.String()},
			},
		)
	}

	return items
}

func (c *Client) availabilityTopic() string {
	return c.config.MQTT.TopicPrefix + "/status"
}

func (c *Client) refreshTopic() string {
	return c.config.MQTT.TopicPrefix + "/refresh/set"
}

func (c *Client) readingTopic(field models.Field) string {
	return c.config.MQTT.TopicPrefix + "/" + string(field)
}

func (c *Client) parameterTopic(name, leaf string) string {
	return c.config.MQTT.TopicPrefix + "/parameter/" + topicName(name) + "/" + leaf
}

func topicName(name string) string {
	return strings.Replace(strings.ToLower(name), " ", "_", -1)
}

func titleCase(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func formatValue(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
