package input

import (
	"io"
	"os"
	"time"

	"github.com/energymonitor/energymonitor/internal/button"
	"github.com/juju/errors"
	"github.com/temoto/inputevent-go"
)

const DevInputEventTag = "dev-input-event"

// linux/input-event-codes.h
const evKey = 0x01

// DevInputEventSource reads key transitions of gpio-keys overlay device.
// Code 0 accepts any key.
type DevInputEventSource struct {
	Code uint16

	f io.ReadCloser
}

// compile-time interface compliance test
var _ button.Source = new(DevInputEventSource)

func (self *DevInputEventSource) String() string { return DevInputEventTag }

func NewDevInputEventSource(device string) (*DevInputEventSource, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Annotatef(err, "%s device=%s", DevInputEventTag, device)
	}
	return NewDevInputEventReader(f), nil
}

func NewDevInputEventReader(r io.ReadCloser) *DevInputEventSource {
	return &DevInputEventSource{f: r}
}

func (self *DevInputEventSource) Read() (button.Edge, error) {
	for {
		ie, err := inputevent.ReadOne(self.f)
		if err != nil {
			return button.Edge{}, errors.Annotate(err, DevInputEventTag)
		}
		if ie.Type != evKey || (self.Code != 0 && ie.Code != self.Code) {
			continue
		}
		switch inputevent.KeyEventState(ie.Value) {
		case inputevent.KeyStateDown:
			return button.Edge{Time: time.Unix(ie.Time.Unix()), Pressed: true}, nil
		case inputevent.KeyStateUp:
			return button.Edge{Time: time.Unix(ie.Time.Unix()), Pressed: false}, nil
		}
		// autorepeat KeyStateHold is ignored, hold is classified by timer
	}
}

func (self *DevInputEventSource) Close() error { return self.f.Close() }
