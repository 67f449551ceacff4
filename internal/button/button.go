// Package button turns raw button transitions into Press, Held, Wakeup
// and Inactivity events.
//
// Release before hold threshold emits Press. Hold past threshold emits Held,
// the following release emits nothing. Any activity rearms inactivity watchdog.
// After Inactivity, next press emits only Wakeup and rearms watchdog with
// wakeup grace timeout.
package button

import (
	"sync"
	"time"

	"github.com/energymonitor/energymonitor/helpers/atomic_clock"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
)

const (
	DefaultDebounce = 100 * time.Millisecond
	DefaultHold     = 3 * time.Second
	DefaultSleep    = 30 * time.Second
	DefaultWakeup   = 120 * time.Second
)

type Config struct {
	Debounce time.Duration
	Hold     time.Duration
	Sleep    time.Duration // steady state inactivity timeout
	Wakeup   time.Duration // inactivity timeout after wakeup press
}

// Edge is raw transition of active-low button line, already inverted.
type Edge struct {
	Time    time.Time
	Pressed bool
}

type Source interface {
	Read() (Edge, error)
	String() string
}

type Button struct {
	Log *log2.Log

	config   Config
	pub      types.Publisher
	watchdog *Watchdog
	hold     *Watchdog
	settle   *Watchdog

	mu        sync.Mutex
	down      bool
	held      bool
	waking    bool // current press woke display, consumed entirely
	asleep    bool
	level     bool // last raw level, differs from down while edge waits out debounce
	levelAt   time.Time
	lastEdge  atomic_clock.Clock
	pressedAt atomic_clock.Clock
}

func NewButton(log *log2.Log, config Config, pub types.Publisher) *Button {
	self := &Button{
		Log:    log,
		config: config,
		pub:    pub,
	}
	self.watchdog = NewWatchdog(self.onInactivity)
	self.hold = NewWatchdog(self.onHold)
	self.settle = NewWatchdog(self.onSettle)
	return self
}

// Start arms inactivity watchdog for display that is on at boot.
func (self *Button) Start() {
	self.watchdog.Arm(self.config.Sleep)
}

func (self *Button) Stop() {
	self.watchdog.Cancel()
	self.hold.Cancel()
	self.settle.Cancel()
}

// Run feeds transitions from source until read error.
func (self *Button) Run(source Source) error {
	tag := source.String()
	for {
		e, err := source.Read()
		if err != nil {
			return errors.Annotatef(err, "button source=%s", tag)
		}
		self.Transition(e)
	}
}

// Transition inside debounce window is not lost: level is applied
// when the window ends, if it still differs.
func (self *Button) Transition(e Edge) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.level = e.Pressed
	self.levelAt = e.Time
	if e.Pressed == self.down {
		self.settle.Cancel()
		return
	}
	if !self.lastEdge.IsZero() {
		if elapsed := self.lastEdge.Elapsed(e.Time); elapsed < self.config.Debounce {
			self.Log.Debugf("button debounce pressed=%t", e.Pressed)
			self.settle.Arm(self.config.Debounce - elapsed)
			return
		}
	}
	self.settle.Cancel()
	self.apply(e)
}

func (self *Button) onSettle() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.level == self.down {
		return
	}
	self.Log.Debugf("button settled pressed=%t", self.level)
	self.apply(Edge{Time: self.levelAt, Pressed: self.level})
}

func (self *Button) apply(e Edge) {
	self.lastEdge.SetTime(e.Time)

	if e.Pressed {
		self.down = true
		self.held = false
		self.pressedAt.SetTime(e.Time)
		if self.asleep {
			self.asleep = false
			self.waking = true
			self.watchdog.Arm(self.config.Wakeup)
			self.publish(types.EventWakeup)
			return
		}
		self.hold.Arm(self.config.Hold)
		self.watchdog.Arm(self.config.Sleep)
		return
	}

	self.down = false
	self.hold.Cancel()
	if self.waking {
		self.waking = false
		return
	}
	self.watchdog.Arm(self.config.Sleep)
	if self.held {
		self.Log.Debugf("button release after hold duration=%s", self.pressedAt.Elapsed(e.Time))
		return
	}
	self.publish(types.EventPress)
}

func (self *Button) onHold() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.down || self.held || self.waking {
		return
	}
	self.held = true
	self.watchdog.Arm(self.config.Sleep)
	self.publish(types.EventHeld)
}

func (self *Button) onInactivity() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.down {
		// hold in progress past sleep timeout
		self.watchdog.Arm(self.config.Sleep)
		return
	}
	self.asleep = true
	self.publish(types.EventInactivity)
}

func (self *Button) publish(kind types.EventKind) {
	self.Log.Debugf("button event=%s", kind.String())
	self.pub.Publish(types.Event{Kind: kind})
}
