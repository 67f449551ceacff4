// Package hassmqtt publishes measurements to MQTT with Home Assistant discovery.
package hassmqtt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
)

const (
	DeviceName       = "energy-monitor"
	DiscoveryPrefix  = "homeassistant"
	DefaultKeepAlive = 60 * time.Second
	publishTimeout   = 5 * time.Second
)

type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	KeepAlive   time.Duration
	LogDebug    bool
}

type sensor struct {
	key         string
	name        string
	unit        string
	deviceClass string
	stateClass  string
	state       string // rpict|linky
}

type Hass struct {
	Log *log2.Log

	config      Config
	client      mqtt.Client
	topicStatus string
	topicRpict  string
	topicLinky  string
}

func New(log *log2.Log, config Config) (*Hass, error) {
	if _, err := url.ParseRequestURI(config.Broker); err != nil {
		return nil, errors.Annotatef(err, "mqtt broker=%s", config.Broker)
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = DefaultKeepAlive
	}
	mqttLog := log.Clone(log2.LInfo)
	if config.LogDebug {
		mqttLog.SetLevel(log2.LDebug)
	}
	mqtt.ERROR = log2.Leveled{L: mqttLog, Level: log2.LError}
	mqtt.CRITICAL = log2.Leveled{L: mqttLog, Level: log2.LError}
	mqtt.WARN = log2.Leveled{L: mqttLog, Level: log2.LInfo}
	mqtt.DEBUG = log2.Leveled{L: mqttLog, Level: log2.LDebug}

	self := &Hass{
		Log:         log,
		config:      config,
		topicStatus: config.TopicPrefix + DeviceName + "/status",
		topicRpict:  config.TopicPrefix + DeviceName + "/rpict",
		topicLinky:  config.TopicPrefix + DeviceName + "/linky",
	}
	opt := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(DeviceName).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetWill(self.topicStatus, "offline", 1, true).
		SetCleanSession(true).
		SetKeepAlive(config.KeepAlive).
		SetPingTimeout(config.KeepAlive / 2).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second).
		SetOnConnectHandler(self.onConnect).
		SetConnectionLostHandler(self.onConnectionLost)
	self.client = mqtt.NewClient(opt)
	return self, nil
}

// Start connects in background, retrying until success.
func (self *Hass) Start() {
	self.client.Connect()
}

func (self *Hass) Stop() {
	if self.client.IsConnected() {
		tok := self.client.Publish(self.topicStatus, 1, true, "offline")
		tok.WaitTimeout(publishTimeout)
	}
	self.client.Disconnect(250)
}

// Handle is dispatcher subscriber.
func (self *Hass) Handle(m types.Message) error {
	var topic string
	var state map[string]interface{}
	switch v := m.(type) {
	case types.RpictMeasurement:
		topic = self.topicRpict
		state = map[string]interface{}{"node_id": v.NodeID, "time": v.Time.Format(time.RFC3339)}
		for i, p := range v.Phases() {
			l := fmt.Sprintf("l%d_", i+1)
			state[l+"real_power"] = p.RealPower
			state[l+"apparent_power"] = p.ApparentPower
			state[l+"irms"] = p.Irms
			state[l+"vrms"] = p.Vrms
			state[l+"power_factor"] = p.PowerFactor
		}
	case types.LinkyMeasurement:
		topic = self.topicLinky
		state = map[string]interface{}{
			"adco":     v.Adco,
			"ptec":     v.Ptec,
			"hc_index": v.Hchc,
			"hp_index": v.Hchp,
			"time":     v.Time.Format(time.RFC3339),
		}
	case types.Ready, types.Event:
		return nil
	default:
		return errors.NotSupportedf("hassmqtt message=%s", m.String())
	}

	if !self.client.IsConnected() {
		self.Log.Debugf("mqtt disconnected, drop %s", m.String())
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return errors.Annotate(err, "hassmqtt")
	}
	return self.publish(self.client, topic, false, payload)
}

func (self *Hass) onConnect(c mqtt.Client) {
	self.Log.Infof("mqtt connected broker=%s", self.config.Broker)
	for _, s := range sensors() {
		topic := fmt.Sprintf("%s/sensor/%s/%s/config", DiscoveryPrefix, DeviceName, s.key)
		payload, err := json.Marshal(self.discovery(s))
		if err != nil {
			self.Log.Error(errors.Annotatef(err, "mqtt discovery sensor=%s", s.key))
			continue
		}
		if err := self.publish(c, topic, true, payload); err != nil {
			self.Log.Error(err)
		}
	}
	if err := self.publish(c, self.topicStatus, true, []byte("online")); err != nil {
		self.Log.Error(err)
	}
}

func (self *Hass) onConnectionLost(c mqtt.Client, err error) {
	self.Log.Errorf("mqtt connection lost err=%v", err)
}

func (self *Hass) publish(c mqtt.Client, topic string, retain bool, payload []byte) error {
	tok := c.Publish(topic, 1, retain, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return errors.Timeoutf("mqtt publish topic=%s", topic)
	}
	return errors.Annotatef(tok.Error(), "mqtt publish topic=%s", topic)
}

func (self *Hass) discovery(s sensor) map[string]interface{} {
	stateTopic := self.topicRpict
	if s.state == "linky" {
		stateTopic = self.topicLinky
	}
	d := map[string]interface{}{
		"name":               s.name,
		"unique_id":          DeviceName + "_" + s.key,
		"state_topic":        stateTopic,
		"value_template":     "{{ value_json." + s.key + " }}",
		"availability_topic": self.topicStatus,
		"device": map[string]interface{}{
			"identifiers": []string{DeviceName},
			"name":        DeviceName,
		},
	}
	if s.unit != "" {
		d["unit_of_measurement"] = s.unit
	}
	if s.deviceClass != "" {
		d["device_class"] = s.deviceClass
	}
	if s.stateClass != "" {
		d["state_class"] = s.stateClass
	}
	return d
}

func sensors() []sensor {
	result := make([]sensor, 0, 18)
	for i := 1; i <= 3; i++ {
		l := fmt.Sprintf("l%d_", i)
		p := fmt.Sprintf("L%d ", i)
		result = append(result,
			sensor{l + "real_power", p + "real power", "W", "power", "measurement", "rpict"},
			sensor{l + "apparent_power", p + "apparent power", "VA", "apparent_power", "measurement", "rpict"},
			sensor{l + "irms", p + "current", "A", "current", "measurement", "rpict"},
			sensor{l + "vrms", p + "voltage", "V", "voltage", "measurement", "rpict"},
			sensor{l + "power_factor", p + "power factor", "", "power_factor", "measurement", "rpict"},
		)
	}
	result = append(result,
		sensor{"hc_index", "Off-peak index", "Wh", "energy", "total_increasing", "linky"},
		sensor{"hp_index", "Peak index", "Wh", "energy", "total_increasing", "linky"},
		sensor{"ptec", "Tariff period", "", "", "", "linky"},
	)
	return result
}
