package state

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/energymonitor/energymonitor/hardware/input"
	"github.com/energymonitor/energymonitor/hardware/serial"
	"github.com/energymonitor/energymonitor/hardware/ssd1305"
	"github.com/energymonitor/energymonitor/internal/button"
	"github.com/energymonitor/energymonitor/internal/hmi"
	"github.com/juju/errors"
)

// OpenSerialFunc is replaced in tests.
type OpenSerialFunc func(device string, baud int, format string) (io.ReadCloser, error)

type hardware struct {
	Display struct {
		once
		Sink hmi.Sink
	}
	Button struct {
		once
		Source button.Source
	}
	OpenSerial OpenSerialFunc

	mu      sync.Mutex
	closers []io.Closer
}

func openSerial(device string, baud int, format string) (io.ReadCloser, error) {
	port, err := serial.Open(device, baud, format)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Display returns configured display sink. Absent display is nil sink, nil error.
func (g *Global) Display() (hmi.Sink, error) {
	x := &g.Hardware.Display // short alias
	_ = x.do(func() error {
		if x.Sink != nil { // testing mode
			return nil
		}
		if !g.Config.DisplayEnabled() {
			g.Log.Infof("display ssd1305 is disabled")
			return nil
		}
		devConfig := &g.Config.Hardware.Display
		d, err := ssd1305.Open(&ssd1305.Config{
			SpiBus:   devConfig.Spi,
			SpiSpeed: devConfig.SpiSpeed,
			PinChip:  devConfig.PinChip,
			DcPin:    devConfig.DcPin,
			RstPin:   devConfig.RstPin,
			Contrast: byte(devConfig.Contrast),
		})
		if err != nil {
			return errors.Annotatef(err, "config: display=%#v", *devConfig)
		}
		x.Sink = d
		g.Hardware.addCloser(d)
		return nil
	})
	return x.Sink, x.err
}

// ButtonSource opens configured button input. Driver none is nil source, nil error.
func (g *Global) ButtonSource() (button.Source, error) {
	x := &g.Hardware.Button
	_ = x.do(func() error {
		if x.Source != nil { // testing mode
			return nil
		}
		c := &g.Config.Hardware.Button
		switch c.Driver {
		case ButtonDriverNone:
			g.Log.Infof("button is disabled")
			return nil

		case ButtonDriverGpio:
			src, err := input.NewGpioSource(c.PinChip, c.Pin)
			if err != nil {
				return errors.Annotatef(err, "button=%s", c.Driver)
			}
			x.Source = src
			g.Hardware.addCloser(src)
			return nil

		case ButtonDriverDevInputEvent:
			src, err := input.NewDevInputEventSource(c.Device)
			if err != nil {
				return errors.Annotatef(err, "button=%s", c.Driver)
			}
			src.Code = uint16(c.Code)
			x.Source = src
			g.Hardware.addCloser(src)
			return nil

		default:
			return errors.NotValidf("config: hardware.button.driver=%s", c.Driver)
		}
	})
	return x.Source, x.err
}

func (g *Global) openSerial(tag string, c *SerialConfig, format string) (io.ReadCloser, error) {
	open := g.Hardware.OpenSerial
	if open == nil {
		open = openSerial
	}
	port, err := open(c.Device, c.Baud, format)
	if err != nil {
		return nil, errors.Annotatef(err, "%s device=%s baud=%d", tag, c.Device, c.Baud)
	}
	g.Hardware.addCloser(port)
	return port, nil
}

func (h *hardware) addCloser(c io.Closer) {
	h.mu.Lock()
	h.closers = append(h.closers, c)
	h.mu.Unlock()
}

func (h *hardware) close() []error {
	h.mu.Lock()
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()
	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errs
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
