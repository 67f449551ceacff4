// Package datalogger writes measurements to InfluxDB (v1 HTTP API, line protocol).
// Delivery is best effort: while server is unreachable measurements are dropped
// and connection is retried with exponential backoff.
package datalogger

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/go-resty/resty/v2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const (
	DefaultURL      = "http://localhost:8086"
	DefaultDatabase = "metrology"
	DefaultTimeout  = 5 * time.Second
)

type Config struct {
	URL      string
	Database string
	Prefix   string // measurement name prefix, e.g. "energy" -> "energy.rpict"
	Timeout  time.Duration
}

type Datalogger struct {
	Log     *log2.Log
	Backoff helpers.Backoff

	config    Config
	client    *resty.Client
	pub       types.Publisher
	connected uint32
	reconnect chan struct{}
	readyOnce sync.Once
}

func New(log *log2.Log, config Config, pub types.Publisher) *Datalogger {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Database == "" {
		config.Database = DefaultDatabase
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(config.URL, "/")).
		SetTimeout(config.Timeout)
	return &Datalogger{
		Log:       log,
		Backoff:   helpers.Backoff{Min: time.Second, Max: 10 * time.Minute, K: 2, Res: time.Second},
		config:    config,
		client:    client,
		pub:       pub,
		reconnect: make(chan struct{}, 1),
	}
}

// SetTransport replaces HTTP round tripper, used in tests.
func (self *Datalogger) SetTransport(rt http.RoundTripper) { self.client.SetTransport(rt) }

func (self *Datalogger) Connected() bool { return atomic.LoadUint32(&self.connected) == 1 }

// Run keeps connection state until alive is stopped.
// First successful ping publishes Ready.
func (self *Datalogger) Run(a *alive.Alive) {
	if !a.Add(1) {
		return
	}
	defer a.Done()
	stopch := a.StopChan()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopch
		cancel()
	}()

	for {
		if !self.Connected() {
			err := self.Ping(ctx)
			if err == nil {
				atomic.StoreUint32(&self.connected, 1)
				self.Backoff.Reset()
				self.Log.Infof("datalogger connected url=%s db=%s", self.config.URL, self.config.Database)
				self.readyOnce.Do(func() { self.pub.Publish(types.Ready{Source: types.SourceDatalogger}) })
				continue
			}
			self.Backoff.Failure()
			self.Log.Errorf("datalogger ping retry=%s err=%v", self.Backoff.Next(), err)
			select {
			case <-time.After(self.Backoff.Next()):
			case <-stopch:
				return
			}
			continue
		}

		select {
		case <-self.reconnect:
		case <-stopch:
			return
		}
	}
}

// Handle is dispatcher subscriber.
func (self *Datalogger) Handle(m types.Message) error {
	switch m.(type) {
	case types.RpictMeasurement, types.LinkyMeasurement:
	case types.Ready, types.Event:
		return nil
	default:
		return errors.NotSupportedf("datalogger message=%s", m.String())
	}

	if !self.Connected() {
		self.Log.Debugf("datalogger disconnected, drop %s", m.String())
		return nil
	}
	line, err := FormatLine(self.config.Prefix, m)
	if err != nil {
		return errors.Trace(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), self.config.Timeout)
	defer cancel()
	if err := self.Write(ctx, line); err != nil {
		atomic.StoreUint32(&self.connected, 0)
		select {
		case self.reconnect <- struct{}{}:
		default:
		}
		return errors.Annotate(err, "datalogger")
	}
	return nil
}

func (self *Datalogger) Ping(ctx context.Context) error {
	resp, err := self.client.R().SetContext(ctx).Get("/ping")
	if err != nil {
		return errors.Annotate(err, "influxdb ping")
	}
	if resp.StatusCode() != http.StatusNoContent {
		return errors.Errorf("influxdb ping status=%d", resp.StatusCode())
	}
	return nil
}

func (self *Datalogger) Write(ctx context.Context, lines ...string) error {
	resp, err := self.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"db": self.config.Database, "precision": "ms"}).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(strings.Join(lines, "\n")).
		Post("/write")
	if err != nil {
		return errors.Annotate(err, "influxdb write")
	}
	if resp.StatusCode() != http.StatusNoContent {
		return errors.Errorf("influxdb write status=%d body=%s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

var tagEscaper = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)

// FormatLine renders measurement in line protocol with millisecond timestamp.
func FormatLine(prefix string, m types.Message) (string, error) {
	var b strings.Builder
	name := func(s string) {
		if prefix != "" {
			b.WriteString(tagEscaper.Replace(prefix))
			b.WriteByte('.')
		}
		b.WriteString(s)
	}
	field := func(first bool, key string, v float64) {
		if !first {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	var ts time.Time
	switch v := m.(type) {
	case types.RpictMeasurement:
		ts = v.Time
		name("rpict")
		b.WriteString(",node_id=")
		b.WriteString(strconv.Itoa(v.NodeID))
		b.WriteByte(' ')
		for i, p := range v.Phases() {
			l := "l" + strconv.Itoa(i+1) + "_"
			field(i == 0, l+"real_power", p.RealPower)
			field(false, l+"apparent_power", p.ApparentPower)
			field(false, l+"irms", p.Irms)
			field(false, l+"vrms", p.Vrms)
			field(false, l+"power_factor", p.PowerFactor)
		}

	case types.LinkyMeasurement:
		ts = v.Time
		name("linky")
		b.WriteString(",adco=")
		b.WriteString(tagEscaper.Replace(v.Adco))
		b.WriteByte(' ')
		field(true, "hc_index", float64(v.Hchc))
		field(false, "hp_index", float64(v.Hchp))

	default:
		return "", errors.NotSupportedf("line protocol for %s", m.String())
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(ts.UnixNano()/int64(time.Millisecond), 10))
	return b.String(), nil
}
