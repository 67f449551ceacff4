// Package dispatch fans out messages to subscribers.
// Single loop takes messages in publish order and appends them to every
// subscriber lane. Each lane has one worker, so a subscriber sees messages
// in order and never concurrently with itself. Slow lane does not delay others.
//
// Lanes are unbounded FIFO. Backlog is reported with error log every
// BacklogWarn messages, nothing is dropped.
package dispatch

import (
	"sync"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const DefaultBacklogWarn = 1024

// Handler error or panic loses only that message.
type Handler func(types.Message) error

type envelope struct {
	seq uint64
	m   types.Message
}

type lane struct {
	name  string
	fun   Handler
	since uint64 // first seq to deliver
	wake  chan struct{}

	mu sync.Mutex
	q  []types.Message
}

type Dispatcher struct {
	Log         *log2.Log
	BacklogWarn int

	alive *alive.Alive
	wake  chan struct{}

	mu    sync.Mutex
	seq   uint64
	queue []envelope
	lanes []*lane
	names map[string]struct{}
}

func NewDispatcher(log *log2.Log, a *alive.Alive) *Dispatcher {
	return &Dispatcher{
		Log:         log,
		BacklogWarn: DefaultBacklogWarn,
		alive:       a,
		wake:        make(chan struct{}, 1),
		names:       make(map[string]struct{}, 8),
	}
}

// Publish never blocks.
func (self *Dispatcher) Publish(m types.Message) {
	if m == nil {
		panic("code error dispatch publish nil")
	}
	self.mu.Lock()
	self.seq++
	self.queue = append(self.queue, envelope{seq: self.seq, m: m})
	self.mu.Unlock()
	notify(self.wake)
}

// Subscribe receives messages published after this call returns.
// Name must be unique, it only serves diagnostics.
func (self *Dispatcher) Subscribe(name string, fun Handler) error {
	if fun == nil {
		return errors.NotValidf("dispatch subscribe name=%s handler=nil", name)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if _, ok := self.names[name]; ok {
		return errors.AlreadyExistsf("dispatch subscriber name=%s", name)
	}
	if !self.alive.Add(1) {
		return errors.Errorf("dispatch subscribe name=%s after stop", name)
	}
	l := &lane{
		name:  name,
		fun:   fun,
		since: self.seq + 1,
		wake:  make(chan struct{}, 1),
	}
	self.names[name] = struct{}{}
	self.lanes = append(self.lanes, l)
	go self.worker(l)
	return nil
}

// Run is the dispatch loop, returns on alive stop.
func (self *Dispatcher) Run() {
	if !self.alive.Add(1) {
		return
	}
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		self.mu.Lock()
		batch := self.queue
		self.queue = nil
		lanes := self.lanes
		self.mu.Unlock()

		for _, e := range batch {
			for _, l := range lanes {
				if e.seq >= l.since {
					self.laneAppend(l, e.m)
				}
			}
		}
		if len(batch) != 0 {
			continue
		}

		select {
		case <-self.wake:
		case <-stopch:
			return
		}
	}
}

// Backlog reports messages waiting in subscriber lane.
func (self *Dispatcher) Backlog(name string) int {
	self.mu.Lock()
	lanes := self.lanes
	self.mu.Unlock()
	for _, l := range lanes {
		if l.name == name {
			l.mu.Lock()
			defer l.mu.Unlock()
			return len(l.q)
		}
	}
	return 0
}

func (self *Dispatcher) laneAppend(l *lane, m types.Message) {
	l.mu.Lock()
	l.q = append(l.q, m)
	n := len(l.q)
	l.mu.Unlock()
	notify(l.wake)

	if self.BacklogWarn > 0 && n%self.BacklogWarn == 0 {
		self.Log.Errorf("dispatch lane=%s backlog=%d handler stuck?", l.name, n)
	}
}

func (self *Dispatcher) worker(l *lane) {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		l.mu.Lock()
		if len(l.q) == 0 {
			l.q = nil
			l.mu.Unlock()
			select {
			case <-l.wake:
				continue
			case <-stopch:
				return
			}
		}
		m := l.q[0]
		l.q[0] = nil
		l.q = l.q[1:]
		l.mu.Unlock()

		if err := self.call(l, m); err != nil {
			self.Log.Error(errors.Annotatef(err, "dispatch lane=%s message=%s", l.name, m.String()))
		}
	}
}

func (self *Dispatcher) call(l *lane, m types.Message) (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = helpers.PanicError(x)
		}
	}()
	return l.fun(m)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
