// Package hmi is display state machine: page carousel driven by
// measurements and button events.
// Page is re-rendered only when it is in front and screen is on.
package hmi

import (
	"sync"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
)

const DefaultMaxLinePower = 6900 // W, 230V * 30A

// Sink is display device. HMI never sends lower level commands.
type Sink interface {
	Show(*Frame) error
	PowerOn() error
	PowerOff() error
}

type Config struct {
	MaxLinePower float64
	QRURL        string
	Version      string
}

type HMI struct {
	Log *log2.Log

	sink     Sink
	frame    *Frame
	carousel *Carousel
	recovery []Page

	landing *LandingPage
	rpict   *RpictPage
	linky   *LinkyPage

	mu     sync.Mutex
	on     bool
	closed bool
}

func NewHMI(log *log2.Log, config Config, sink Sink) *HMI {
	if config.MaxLinePower == 0 {
		config.MaxLinePower = DefaultMaxLinePower
	}
	self := &HMI{
		Log:     log,
		sink:    sink,
		frame:   NewFrame(FrameSize),
		landing: NewLandingPage(config.Version),
		rpict:   NewRpictPage(config.MaxLinePower),
		linky:   NewLinkyPage(),
	}
	initial := []Page{self.landing, self.rpict, self.linky}
	self.recovery = []Page{self.rpict, self.linky, self.landing}
	if config.QRURL != "" {
		qr := &QRPage{URL: config.QRURL}
		initial = append(initial, qr)
		self.recovery = append(self.recovery, qr)
	}
	self.carousel = NewCarousel(initial...)
	return self
}

// Start powers display on and shows front page.
func (self *HMI) Start() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return errors.Trace(self.powerOn())
}

// Handle is dispatcher subscriber.
func (self *HMI) Handle(m types.Message) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return nil
	}

	switch v := m.(type) {
	case types.Ready:
		if !self.landing.SetReady(v.Source) {
			self.Log.Debugf("hmi duplicate ready source=%s", v.Source.String())
		}
		return self.renderIfFront(self.landing)

	case types.RpictMeasurement:
		self.rpict.Update(v)
		return self.renderIfFront(self.rpict)

	case types.LinkyMeasurement:
		self.linky.Update(v)
		return self.renderIfFront(self.linky)

	case types.Event:
		return self.handleEvent(v)

	default:
		return errors.NotSupportedf("hmi message=%s", m.String())
	}
}

// Ready reports landing page indicator state.
func (self *HMI) Ready(source types.Source) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.landing.Ready(source)
}

// Shutdown clears and powers off display. Later messages are ignored.
func (self *HMI) Shutdown() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return nil
	}
	self.closed = true
	self.on = false
	self.frame.Clear()
	errs := make([]error, 0, 2)
	if err := self.sink.Show(self.frame); err != nil {
		errs = append(errs, errors.Annotate(err, "hmi shutdown clear"))
	}
	if err := self.sink.PowerOff(); err != nil {
		errs = append(errs, errors.Annotate(err, "hmi shutdown power off"))
	}
	return helpers.FoldErrors(errs)
}

func (self *HMI) handleEvent(e types.Event) error {
	switch e.Kind {
	case types.EventPress:
		page := self.carousel.Next()
		self.Log.Debugf("hmi page=%s", page.Name())
		return self.render(page)

	case types.EventHeld:
		self.Log.Debugf("hmi held, no action")
		return nil

	case types.EventWakeup:
		self.carousel.Reset(self.recovery)
		return self.powerOn()

	case types.EventInactivity:
		if !self.on {
			return nil
		}
		self.on = false
		return errors.Annotate(self.sink.PowerOff(), "hmi power off")

	default:
		return errors.NotSupportedf("hmi event=%s", e.Kind.String())
	}
}

func (self *HMI) powerOn() error {
	if err := self.sink.PowerOn(); err != nil {
		return errors.Annotate(err, "hmi power on")
	}
	self.on = true
	return self.render(self.carousel.Front())
}

func (self *HMI) renderIfFront(page Page) error {
	if !self.carousel.IsFront(page) {
		return nil
	}
	return self.render(page)
}

func (self *HMI) render(page Page) error {
	if !self.on {
		return nil
	}
	self.frame.Clear()
	if err := page.Render(self.frame); err != nil {
		return errors.Annotatef(err, "hmi render page=%s", page.Name())
	}
	return errors.Annotatef(self.sink.Show(self.frame), "hmi show page=%s", page.Name())
}
