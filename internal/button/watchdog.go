package button

import (
	"sync"
	"time"
)

// Watchdog is a single retriggerable timer.
// Arm cancels outstanding timer, so at most one is pending.
// Stale timer that lost the race with Arm/Cancel does not fire.
type Watchdog struct {
	mu   sync.Mutex
	t    *time.Timer
	gen  uint64
	fire func()
}

func NewWatchdog(fire func()) *Watchdog {
	return &Watchdog{fire: fire}
}

func (self *Watchdog) Arm(d time.Duration) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.stop()
	gen := self.gen
	self.t = time.AfterFunc(d, func() { self.expire(gen) })
}

func (self *Watchdog) Cancel() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.stop()
}

// Armed reports pending timer.
func (self *Watchdog) Armed() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.t != nil
}

func (self *Watchdog) stop() {
	self.gen++
	if self.t != nil {
		self.t.Stop()
		self.t = nil
	}
}

func (self *Watchdog) expire(gen uint64) {
	self.mu.Lock()
	if gen != self.gen {
		self.mu.Unlock()
		return
	}
	self.t = nil
	self.mu.Unlock()
	self.fire()
}
