package state

import (
	"testing"
	"time"

	"github.com/energymonitor/energymonitor/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, 6900.0, c.HMI.MaxLinePowerWatts)
			assert.Equal(t, 1024, c.HMI.LaneBacklogWarn)
			assert.Equal(t, "", c.HMI.QRURL)
			bc := c.ButtonConfig()
			assert.Equal(t, 100*time.Millisecond, bc.Debounce)
			assert.Equal(t, 3*time.Second, bc.Hold)
			assert.Equal(t, 30*time.Second, bc.Sleep)
			assert.Equal(t, 120*time.Second, bc.Wakeup)
			assert.Equal(t, ButtonDriverGpio, c.Hardware.Button.Driver)
			assert.Equal(t, "27", c.Hardware.Button.Pin)
			assert.True(t, c.DisplayEnabled())
			assert.True(t, c.RpictEnabled())
			assert.Equal(t, "/dev/ttyAMA0", c.Hardware.Rpict.Device)
			assert.Equal(t, 38400, c.Hardware.Rpict.Baud)
			assert.True(t, c.LinkyEnabled())
			assert.False(t, c.LinkyChecksum())
			assert.Equal(t, "/dev/ttyUSB0", c.Hardware.Linky.Device)
			assert.Equal(t, 1200, c.Hardware.Linky.Baud)
			assert.True(t, c.InfluxdbEnabled())
			dc := c.DataloggerConfig()
			assert.Equal(t, "http://localhost:8086", dc.URL)
			assert.Equal(t, "metrology", dc.Database)
			assert.Equal(t, 5*time.Second, dc.Timeout)
			assert.False(t, c.Mqtt.Enable)
			assert.Equal(t, 60*time.Second, c.HassConfig().KeepAlive)
		}, ""},

		{"hmi", `
hmi {
	max_line_power_watts = 9200
	sleep_timeout_sec = 10
	wakeup_timeout_sec = 60
	button_debounce_ms = 50
	button_hold_ms = 2000
	qr_url = "http://energy.local/"
}`, func(t testing.TB, c *Config) {
			assert.Equal(t, 9200.0, c.HMIConfig("v1").MaxLinePower)
			assert.Equal(t, "v1", c.HMIConfig("v1").Version)
			assert.Equal(t, "http://energy.local/", c.HMIConfig("").QRURL)
			bc := c.ButtonConfig()
			assert.Equal(t, 50*time.Millisecond, bc.Debounce)
			assert.Equal(t, 2*time.Second, bc.Hold)
			assert.Equal(t, 10*time.Second, bc.Sleep)
			assert.Equal(t, 60*time.Second, bc.Wakeup)
		}, ""},

		{"hardware", `
hardware {
	button { driver = "dev_input_event" device = "/dev/input/event0" code = 28 }
	display { enable = false contrast = 127 }
	rpict { device = "/dev/ttyS1" log_debug = true }
	linky { enable = false checksum = true baud = 9600 }
}`, func(t testing.TB, c *Config) {
			assert.Equal(t, ButtonDriverDevInputEvent, c.Hardware.Button.Driver)
			assert.Equal(t, "/dev/input/event0", c.Hardware.Button.Device)
			assert.Equal(t, 28, c.Hardware.Button.Code)
			assert.False(t, c.DisplayEnabled())
			assert.Equal(t, 127, c.Hardware.Display.Contrast)
			assert.True(t, c.RpictEnabled())
			assert.Equal(t, "/dev/ttyS1", c.Hardware.Rpict.Device)
			assert.True(t, c.Hardware.Rpict.LogDebug)
			assert.False(t, c.LinkyEnabled())
			assert.True(t, c.LinkyChecksum())
			assert.Equal(t, 9600, c.Hardware.Linky.Baud)
		}, ""},

		{"mqtt", `mqtt { enable = true broker = "tcp://hass:1883" topic_prefix = "home/" keepalive_sec = 30 }`,
			func(t testing.TB, c *Config) {
				hc := c.HassConfig()
				assert.True(t, c.Mqtt.Enable)
				assert.Equal(t, "tcp://hass:1883", hc.Broker)
				assert.Equal(t, "home/", hc.TopicPrefix)
				assert.Equal(t, 30*time.Second, hc.KeepAlive)
			}, ""},

		{"include-optional", `
include "hmi-sleep-7" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 7*time.Second, c.ButtonConfig().Sleep)
			}, ""},

		{"include-overwrites", `
hmi { sleep_timeout_sec = 1 }
include "hmi-sleep-7" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 7*time.Second, c.ButtonConfig().Sleep)
			}, ""},

		{"include-required", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"include-loop", `include "test-inline" {}`, nil, "config include loop"},
		{"syntax", `hmi {`, nil, "config unmarshal source=test-inline"},
		{"negative-timeout", `hmi { sleep_timeout_sec = -1 }`, nil, "hmi.sleep_timeout_sec=-1 not valid"},
		{"negative-power", `hmi { max_line_power_watts = -5 }`, nil, "hmi.max_line_power_watts=-5 not valid"},
		{"button-driver", `hardware { button { driver = "usb" } }`, nil, "hardware.button.driver=usb valid: gpio, dev_input_event, none not valid"},
		{"contrast", `hardware { display { contrast = 300 } }`, nil, "contrast=300 not valid"},
		{"log-level", `log_level = "loud"`, nil, "config: log_level: log level=loud not valid"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{
				"test-inline": c.input,
				"hmi-sleep-7": "hmi { sleep_timeout_sec = 7 }",
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				require.NoError(t, err)
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
			}
		})
	}
}

func TestOsFullReader(t *testing.T) {
	t.Parallel()

	fs := NewOsFullReader()
	require.NoError(t, fs.SetBase("/etc/energy-monitor"))
	assert.Equal(t, "/etc/energy-monitor/local.hcl", fs.Normalize("./local.hcl"))
	assert.Equal(t, "/tmp/x.hcl", fs.Normalize("/tmp/x.hcl"))

	b, err := fs.ReadAll("/nonexistent/energy-monitor.hcl")
	assert.NoError(t, err)
	assert.Nil(t, b)

	_, err = ReadConfig(nil, fs, "/nonexistent/energy-monitor.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config required name=energy-monitor.hcl")
}
