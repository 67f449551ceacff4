// Package input provides button transition sources for internal/button.
package input

import (
	"strconv"
	"time"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/button"
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
)

const GpioTag = "gpio"

const consumerLabel = "energy-monitor"

// GpioSource reads both edges of active-low button line via GPIO character device.
type GpioSource struct {
	tag    string
	chip   gpio.Chiper
	events gpio.Eventer
}

// compile-time interface compliance test
var _ button.Source = new(GpioSource)

func NewGpioSource(chipPath string, pin string) (*GpioSource, error) {
	line, err := strconv.ParseUint(pin, 10, 16)
	if err != nil {
		return nil, errors.Annotatef(err, "button pin=%s must be line number", pin)
	}
	chip, err := gpio.Open(chipPath, consumerLabel)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	self, err := NewGpioSourceChip(chip, uint32(line))
	if err != nil {
		_ = chip.Close()
		return nil, errors.Annotatef(err, "chip=%s", chipPath)
	}
	self.tag = GpioTag + ":" + chipPath + ":" + pin
	return self, nil
}

func NewGpioSourceChip(chip gpio.Chiper, line uint32) (*GpioSource, error) {
	events, err := chip.GetLineEvent(line, gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW,
		gpio.GPIOEVENT_REQUEST_BOTH_EDGES, "button")
	if err != nil {
		return nil, errors.Annotatef(err, "gpio.GetLineEvent line=%d", line)
	}
	return &GpioSource{
		tag:    GpioTag + ":" + strconv.FormatUint(uint64(line), 10),
		chip:   chip,
		events: events,
	}, nil
}

func (self *GpioSource) String() string { return self.tag }

// Read blocks until next edge. Line is requested active-low so rising edge is press.
func (self *GpioSource) Read() (button.Edge, error) {
	for {
		ev, err := self.events.Wait(0)
		if err != nil {
			if gpio.IsTimeout(err) {
				continue
			}
			return button.Edge{}, errors.Annotate(err, self.tag)
		}
		switch ev.ID {
		case gpio.GPIOEVENT_EVENT_RISING_EDGE:
			return button.Edge{Time: eventTime(ev.Timestamp), Pressed: true}, nil
		case gpio.GPIOEVENT_EVENT_FALLING_EDGE:
			return button.Edge{Time: eventTime(ev.Timestamp), Pressed: false}, nil
		}
	}
}

func (self *GpioSource) Close() error {
	errs := make([]error, 0, 2)
	if self.events != nil {
		errs = append(errs, self.events.Close())
	}
	if self.chip != nil {
		errs = append(errs, self.chip.Close())
	}
	return helpers.FoldErrors(errs)
}

// Kernel timestamp is only used for debounce intervals, epoch does not matter.
func eventTime(ns uint64) time.Time {
	if ns == 0 {
		return time.Now()
	}
	return time.Unix(0, int64(ns))
}
