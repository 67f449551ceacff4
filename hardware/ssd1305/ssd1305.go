// Package ssd1305 drives 128x32 OLED over SPI with GPIO data/command and reset lines.
package ssd1305

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/hmi"
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const (
	DefaultSpiSpeed = 8 * physic.MegaHertz
	DefaultDcPin    = "24"
	DefaultRstPin   = "25"

	cmdDisplayOff byte = 0xae
	cmdDisplayOn  byte = 0xaf
	cmdContrast   byte = 0x81
	cmdPage       byte = 0xb0
	cmdColumnLow  byte = 0x04 // panel starts at column 4 of 132
	cmdColumnHigh byte = 0x10

	resetPulse = 10 * time.Millisecond
)

// page addressing, segment remap, 1/32 multiplex, COM scan reversed
var initSequence = []byte{
	0x04, 0x10, 0x40,
	0xa1, 0xa6,
	0xa8, 0x1f,
	0xc8,
	0xd3, 0x00,
	0xd5, 0xf0,
	0xd8, 0x05,
	0xd9, 0xc2,
	0xda, 0x12,
	0xdb, 0x08,
}

type Config struct {
	SpiBus   string // empty selects first available bus
	SpiSpeed string
	PinChip  string
	DcPin    string
	RstPin   string
	Contrast byte

	testhw *hardware
}

type SpiTxFunc func(send, recv []byte) error

type hardware struct {
	spiTx SpiTxFunc
	dc    gpio.LineSetFunc
	rst   gpio.LineSetFunc
	lines gpio.Lineser

	spiPort spi.PortCloser // only for resource cleanup
	chip    gpio.Chiper    // only for resource cleanup
}

type Display struct {
	mu       sync.Mutex
	hw       hardware
	contrast byte
	sleep    func(time.Duration)
}

// compile-time interface compliance test
var _ hmi.Sink = new(Display)

// Open resets and initializes controller, display stays off until PowerOn.
func Open(c *Config) (*Display, error) {
	self := &Display{contrast: c.Contrast, sleep: time.Sleep}
	if err := self.hw.open(c); err != nil {
		_ = self.hw.Close()
		return nil, errors.Annotate(err, "ssd1305")
	}
	if err := self.begin(); err != nil {
		_ = self.hw.Close()
		return nil, errors.Annotate(err, "ssd1305 init")
	}
	return self, nil
}

func (h *hardware) open(c *Config) error {
	if c.testhw != nil {
		*h = *c.testhw
		return nil
	}
	dcPin, rstPin := c.DcPin, c.RstPin
	if dcPin == "" {
		dcPin = DefaultDcPin
	}
	if rstPin == "" {
		rstPin = DefaultRstPin
	}
	dcLine, err := strconv.ParseUint(dcPin, 10, 16)
	if err != nil {
		return errors.Annotatef(err, "dc_pin=%s must be line number", dcPin)
	}
	rstLine, err := strconv.ParseUint(rstPin, 10, 16)
	if err != nil {
		return errors.Annotatef(err, "rst_pin=%s must be line number", rstPin)
	}

	if _, err = host.Init(); err != nil {
		return errors.Annotate(err, "periph/init")
	}
	h.spiPort, err = spireg.Open(c.SpiBus)
	if err != nil {
		return errors.Annotatef(err, "SPI Open bus=%s", c.SpiBus)
	}
	spiSpeed := DefaultSpiSpeed
	if c.SpiSpeed != "" {
		if err = spiSpeed.Set(c.SpiSpeed); err != nil {
			return errors.Annotate(err, "SPI speed parse")
		}
	}
	spiConn, err := h.spiPort.Connect(spiSpeed, spi.Mode0, 8)
	if err != nil {
		return errors.Annotate(err, "SPI Connect")
	}
	h.spiTx = spiConn.Tx

	h.chip, err = gpio.Open(c.PinChip, "ssd1305")
	if err != nil {
		return errors.Annotatef(err, "gpio open chip=%s", c.PinChip)
	}
	h.lines, err = h.chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, "ssd1305", uint32(dcLine), uint32(rstLine))
	if err != nil {
		return errors.Annotate(err, "gpio.OpenLines dc,rst")
	}
	h.dc = h.lines.SetFunc(uint32(dcLine))
	h.rst = h.lines.SetFunc(uint32(rstLine))
	return nil
}

func (h *hardware) Close() error {
	closers := []io.Closer{
		h.lines,
		h.chip,
		h.spiPort,
	}
	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return helpers.FoldErrors(errs)
}

func (self *Display) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.hw.Close()
}

func (self *Display) PowerOn() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return errors.Annotate(self.command(cmdDisplayOn), "ssd1305 power on")
}

func (self *Display) PowerOff() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return errors.Annotate(self.command(cmdDisplayOff), "ssd1305 power off")
}

// Show writes whole frame, page by page.
func (self *Display) Show(f *hmi.Frame) error {
	size := f.Size()
	if size.X != hmi.Width || size.Y != hmi.Height {
		return errors.NotValidf("ssd1305 frame size=%v", size)
	}
	buf := f.PackPages()

	self.mu.Lock()
	defer self.mu.Unlock()
	for page := 0; page < hmi.Height/8; page++ {
		if err := self.command(cmdPage+byte(page), cmdColumnLow, cmdColumnHigh); err != nil {
			return errors.Annotatef(err, "ssd1305 page=%d", page)
		}
		if err := self.data(buf[page*hmi.Width : (page+1)*hmi.Width]); err != nil {
			return errors.Annotatef(err, "ssd1305 page=%d", page)
		}
	}
	return nil
}

func (self *Display) begin() error {
	self.reset()
	if err := self.command(cmdDisplayOff); err != nil {
		return err
	}
	if err := self.command(cmdContrast, self.contrast); err != nil {
		return err
	}
	return self.command(initSequence...)
}

func (self *Display) reset() {
	self.hw.rst(1)
	self.flush()
	self.sleep(resetPulse)
	self.hw.rst(0)
	self.flush()
	self.sleep(resetPulse)
	self.hw.rst(1)
	self.flush()
}

func (self *Display) flush() {
	if self.hw.lines != nil {
		self.hw.lines.Flush() //nolint:errcheck
	}
}

func (self *Display) command(bs ...byte) error {
	self.hw.dc(0)
	self.flush()
	for _, b := range bs {
		if err := self.hw.spiTx([]byte{b}, nil); err != nil {
			return errors.Annotatef(err, "command=%02x", b)
		}
	}
	return nil
}

func (self *Display) data(b []byte) error {
	self.hw.dc(1)
	self.flush()
	return self.hw.spiTx(b, nil)
}
