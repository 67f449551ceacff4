package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/energymonitor/energymonitor/hardware/serial"
	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/button"
	"github.com/energymonitor/energymonitor/internal/datalogger"
	"github.com/energymonitor/energymonitor/internal/dispatch"
	"github.com/energymonitor/energymonitor/internal/hassmqtt"
	"github.com/energymonitor/energymonitor/internal/hmi"
	"github.com/energymonitor/energymonitor/internal/linky"
	"github.com/energymonitor/energymonitor/internal/rpict"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Dispatcher   *dispatch.Dispatcher
	HMI          *hmi.HMI
	Button       *button.Button
	Datalogger   *datalogger.Datalogger
	Hass         *hassmqtt.Hass
	Hardware     hardware // hardware.go
	Log          *log2.Log

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.WithValue(context.Background(), ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// Init wires subscribers before any device may publish.
// Absent devices are reported as warnings, their feature is disabled for the session.
// Error is returned only for configuration mistakes.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	errorCount := helpers.StatVar("errors")
	g.Log.SetErrorFunc(func(error) { errorCount.Add(1) })

	if g.Dispatcher == nil {
		g.Dispatcher = dispatch.NewDispatcher(g.Log, g.Alive)
	}
	g.Dispatcher.BacklogWarn = cfg.HMI.LaneBacklogWarn

	sink, err := g.Display()
	if err != nil {
		g.Log.Warningf("display unavailable err=%v", err)
	}
	if sink == nil {
		sink = hmi.NopSink{}
	}
	g.HMI = hmi.NewHMI(g.Log, cfg.HMIConfig(g.BuildVersion), sink)

	errs := make([]error, 0, 4)
	errs = append(errs, g.Dispatcher.Subscribe("hmi", g.HMI.Handle))
	errs = append(errs, g.initDatalogger())
	errs = append(errs, g.initHass())
	if err := helpers.FoldErrors(errs); err != nil {
		return err
	}

	go g.Dispatcher.Run()
	g.Error(g.HMI.Start())

	g.initButton()
	g.initRpict()
	g.initLinky()
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

// Shutdown blanks display first, decoders reading serial ports are abandoned.
func (g *Global) Shutdown(timeout time.Duration) error {
	errs := make([]error, 0, 4)
	if g.Button != nil {
		g.Button.Stop()
	}
	if g.HMI != nil {
		errs = append(errs, g.HMI.Shutdown())
	}
	if g.Hass != nil {
		g.Hass.Stop()
	}
	if !g.StopWait(timeout) {
		errs = append(errs, errors.Timeoutf("shutdown wait=%s", timeout))
	}
	errs = append(errs, g.Hardware.close()...)
	return helpers.FoldErrors(errs)
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// deviceLog clones global log, optionally at debug level for one device.
func (g *Global) deviceLog(debug bool) *log2.Log {
	log := g.Log.Clone(log2.LInfo)
	if g.Log.Enabled(log2.LDebug) || debug {
		log.SetLevel(log2.LDebug)
	}
	return log
}

func (g *Global) initDatalogger() error {
	if !g.Config.InfluxdbEnabled() {
		g.Log.Infof("datalogger is disabled")
		return nil
	}
	g.Datalogger = datalogger.New(g.Log, g.Config.DataloggerConfig(), g.Dispatcher)
	if err := g.Dispatcher.Subscribe("datalogger", g.Datalogger.Handle); err != nil {
		return err
	}
	go g.Datalogger.Run(g.Alive)
	return nil
}

func (g *Global) initHass() error {
	if !g.Config.Mqtt.Enable {
		g.Log.Infof("hassmqtt is disabled")
		return nil
	}
	h, err := hassmqtt.New(g.Log, g.Config.HassConfig())
	if err != nil {
		g.Log.Warningf("hassmqtt unavailable err=%v", err)
		return nil
	}
	if err = g.Dispatcher.Subscribe("hassmqtt", h.Handle); err != nil {
		return err
	}
	g.Hass = h
	h.Start()
	return nil
}

func (g *Global) initButton() {
	src, err := g.ButtonSource()
	if err != nil {
		g.Log.Warningf("button unavailable err=%v", err)
		return
	}
	if src == nil {
		return
	}
	g.Button = button.NewButton(g.Log, g.Config.ButtonConfig(), g.Dispatcher)
	g.Button.Start()
	go g.runReader("button", func() error { return g.Button.Run(src) })
}

func (g *Global) initRpict() {
	c := &g.Config.Hardware.Rpict
	if !g.Config.RpictEnabled() {
		g.Log.Infof("rpict is disabled")
		return
	}
	port, err := g.openSerial("rpict", c, serial.Format8N1)
	if err != nil {
		g.Log.Warningf("rpict unavailable err=%v", err)
		return
	}
	d := rpict.NewDecoder(g.deviceLog(c.LogDebug), g.Dispatcher)
	g.Dispatcher.Publish(types.Ready{Source: types.SourceRpict})
	go g.runReader("rpict", func() error { return d.Run(port) })
}

func (g *Global) initLinky() {
	c := &g.Config.Hardware.Linky
	if !g.Config.LinkyEnabled() {
		g.Log.Infof("linky is disabled")
		return
	}
	port, err := g.openSerial("linky", &c.SerialConfig, serial.Format7E1)
	if err != nil {
		g.Log.Warningf("linky unavailable err=%v", err)
		return
	}
	d := linky.NewDecoder(g.deviceLog(c.LogDebug), g.Dispatcher, g.Config.LinkyChecksum())
	g.Dispatcher.Publish(types.Ready{Source: types.SourceLinky})
	go g.runReader("linky", func() error { return d.Run(port) })
}

// Device goroutines end only on read error, they are not tracked by alive.
func (g *Global) runReader(tag string, run func() error) {
	if err := run(); err != nil {
		g.Log.Errorf("%s stopped err=%v", tag, err)
		return
	}
	g.Log.Infof("%s stream end", tag)
}
