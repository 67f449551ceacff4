package state

import (
	"path/filepath"
	"sync"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/button"
	"github.com/energymonitor/energymonitor/internal/datalogger"
	"github.com/energymonitor/energymonitor/internal/dispatch"
	"github.com/energymonitor/energymonitor/internal/hassmqtt"
	"github.com/energymonitor/energymonitor/internal/hmi"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

const (
	ButtonDriverGpio          = "gpio"
	ButtonDriverDevInputEvent = "dev_input_event"
	ButtonDriverNone          = "none"

	DefaultPinChip     = "/dev/gpiochip0"
	DefaultButtonPin   = "27"
	DefaultRpictDevice = "/dev/ttyAMA0"
	DefaultRpictBaud   = 38400
	DefaultLinkyDevice = "/dev/ttyUSB0"
	DefaultLinkyBaud   = 1200
	DefaultMqttBroker  = "tcp://localhost:1883"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	LogLevel string `hcl:"log_level"`

	HMI struct {
		MaxLinePowerWatts float64 `hcl:"max_line_power_watts"`
		SleepTimeoutSec   int     `hcl:"sleep_timeout_sec"`
		WakeupTimeoutSec  int     `hcl:"wakeup_timeout_sec"`
		ButtonDebounceMs  int     `hcl:"button_debounce_ms"`
		ButtonHoldMs      int     `hcl:"button_hold_ms"`
		LaneBacklogWarn   int     `hcl:"lane_backlog_warn"`
		QRURL             string  `hcl:"qr_url"`
	} `hcl:"hmi"`

	Hardware struct {
		Button struct {
			Driver  string `hcl:"driver"`
			PinChip string `hcl:"pin_chip"`
			Pin     string `hcl:"pin"`
			Device  string `hcl:"device"`
			Code    int    `hcl:"code"`
		} `hcl:"button"`
		Display struct {
			Enable   *bool  `hcl:"enable"`
			Spi      string `hcl:"spi"`
			SpiSpeed string `hcl:"spi_speed"`
			PinChip  string `hcl:"pin_chip"`
			DcPin    string `hcl:"dc_pin"`
			RstPin   string `hcl:"rst_pin"`
			Contrast int    `hcl:"contrast"`
		} `hcl:"display"`
		Rpict SerialConfig `hcl:"rpict"`
		Linky struct {
			SerialConfig `hcl:",squash"`
			Checksum     bool `hcl:"checksum"` // off by default, plain "KEY VALUE" lines have none
		} `hcl:"linky"`
	} `hcl:"hardware"`

	Influxdb struct {
		Enable     *bool  `hcl:"enable"`
		URL        string `hcl:"url"`
		Database   string `hcl:"database"`
		Prefix     string `hcl:"prefix"`
		TimeoutSec int    `hcl:"timeout_sec"`
	} `hcl:"influxdb"`

	Mqtt struct {
		Enable       bool   `hcl:"enable"`
		Broker       string `hcl:"broker"`
		Username     string `hcl:"username"`
		Password     string `hcl:"password"`
		TopicPrefix  string `hcl:"topic_prefix"`
		KeepaliveSec int    `hcl:"keepalive_sec"`
		LogDebug     bool   `hcl:"log_debug"`
	} `hcl:"mqtt"`

	_copy_guard sync.Mutex //nolint:unused
}

type SerialConfig struct {
	Enable   *bool  `hcl:"enable"`
	Device   string `hcl:"device"`
	Baud     int    `hcl:"baud"`
	LogDebug bool   `hcl:"log_debug"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func enabled(b *bool) bool { return b == nil || *b }

func (c *Config) DisplayEnabled() bool  { return enabled(c.Hardware.Display.Enable) }
func (c *Config) RpictEnabled() bool    { return enabled(c.Hardware.Rpict.Enable) }
func (c *Config) LinkyEnabled() bool    { return enabled(c.Hardware.Linky.Enable) }
func (c *Config) LinkyChecksum() bool   { return c.Hardware.Linky.Checksum }
func (c *Config) InfluxdbEnabled() bool { return enabled(c.Influxdb.Enable) }

func (c *Config) ButtonConfig() button.Config {
	return button.Config{
		Debounce: helpers.IntMillisecondDefault(c.HMI.ButtonDebounceMs, button.DefaultDebounce),
		Hold:     helpers.IntMillisecondDefault(c.HMI.ButtonHoldMs, button.DefaultHold),
		Sleep:    helpers.IntSecondDefault(c.HMI.SleepTimeoutSec, button.DefaultSleep),
		Wakeup:   helpers.IntSecondDefault(c.HMI.WakeupTimeoutSec, button.DefaultWakeup),
	}
}

func (c *Config) HMIConfig(version string) hmi.Config {
	return hmi.Config{
		MaxLinePower: c.HMI.MaxLinePowerWatts,
		QRURL:        c.HMI.QRURL,
		Version:      version,
	}
}

func (c *Config) DataloggerConfig() datalogger.Config {
	return datalogger.Config{
		URL:      c.Influxdb.URL,
		Database: c.Influxdb.Database,
		Prefix:   c.Influxdb.Prefix,
		Timeout:  helpers.IntSecondDefault(c.Influxdb.TimeoutSec, datalogger.DefaultTimeout),
	}
}

func (c *Config) HassConfig() hassmqtt.Config {
	return hassmqtt.Config{
		Broker:      c.Mqtt.Broker,
		Username:    c.Mqtt.Username,
		Password:    c.Mqtt.Password,
		TopicPrefix: c.Mqtt.TopicPrefix,
		KeepAlive:   helpers.IntSecondDefault(c.Mqtt.KeepaliveSec, hassmqtt.DefaultKeepAlive),
		LogDebug:    c.Mqtt.LogDebug,
	}
}

// applyDefaults fills empty values after all sources are read.
func (c *Config) applyDefaults() {
	if c.HMI.MaxLinePowerWatts == 0 {
		c.HMI.MaxLinePowerWatts = hmi.DefaultMaxLinePower
	}
	if c.HMI.LaneBacklogWarn == 0 {
		c.HMI.LaneBacklogWarn = dispatch.DefaultBacklogWarn
	}
	b := &c.Hardware.Button
	if b.Driver == "" {
		b.Driver = ButtonDriverGpio
	}
	if b.PinChip == "" {
		b.PinChip = DefaultPinChip
	}
	if b.Pin == "" {
		b.Pin = DefaultButtonPin
	}
	d := &c.Hardware.Display
	if d.PinChip == "" {
		d.PinChip = DefaultPinChip
	}
	if c.Hardware.Rpict.Device == "" {
		c.Hardware.Rpict.Device = DefaultRpictDevice
	}
	if c.Hardware.Rpict.Baud == 0 {
		c.Hardware.Rpict.Baud = DefaultRpictBaud
	}
	if c.Hardware.Linky.Device == "" {
		c.Hardware.Linky.Device = DefaultLinkyDevice
	}
	if c.Hardware.Linky.Baud == 0 {
		c.Hardware.Linky.Baud = DefaultLinkyBaud
	}
	if c.Influxdb.URL == "" {
		c.Influxdb.URL = datalogger.DefaultURL
	}
	if c.Influxdb.Database == "" {
		c.Influxdb.Database = datalogger.DefaultDatabase
	}
	if c.Mqtt.Broker == "" {
		c.Mqtt.Broker = DefaultMqttBroker
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if _, err := log2.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, errors.Annotate(err, "config: log_level"))
	}
	if c.HMI.MaxLinePowerWatts <= 0 {
		errs = append(errs, errors.NotValidf("config: hmi.max_line_power_watts=%v", c.HMI.MaxLinePowerWatts))
	}
	ints := []struct {
		name string
		v    int
	}{
		{"hmi.sleep_timeout_sec", c.HMI.SleepTimeoutSec},
		{"hmi.wakeup_timeout_sec", c.HMI.WakeupTimeoutSec},
		{"hmi.button_debounce_ms", c.HMI.ButtonDebounceMs},
		{"hmi.button_hold_ms", c.HMI.ButtonHoldMs},
		{"hmi.lane_backlog_warn", c.HMI.LaneBacklogWarn},
		{"hardware.display.contrast", c.Hardware.Display.Contrast},
		{"influxdb.timeout_sec", c.Influxdb.TimeoutSec},
		{"mqtt.keepalive_sec", c.Mqtt.KeepaliveSec},
	}
	for _, x := range ints {
		if x.v < 0 {
			errs = append(errs, errors.NotValidf("config: %s=%d", x.name, x.v))
		}
	}
	if c.Hardware.Display.Contrast > 0xff {
		errs = append(errs, errors.NotValidf("config: hardware.display.contrast=%d", c.Hardware.Display.Contrast))
	}
	switch c.Hardware.Button.Driver {
	case ButtonDriverGpio, ButtonDriverDevInputEvent, ButtonDriverNone:
	default:
		errs = append(errs, errors.NotValidf("config: hardware.button.driver=%s valid: gpio, dev_input_event, none", c.Hardware.Button.Driver))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.AlreadyExistsf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return c, err
	}
	c.applyDefaults()
	return c, c.Validate()
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
