package hmi

import (
	"fmt"
	"io"
	"sync"
)

// MockSink records frames and power commands.
type MockSink struct {
	mu     sync.Mutex
	Frames []*Frame
	On     bool
	Calls  []string
	Err    error
}

func (self *MockSink) Show(f *Frame) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Calls = append(self.Calls, "show")
	self.Frames = append(self.Frames, f.Clone())
	return self.Err
}

func (self *MockSink) PowerOn() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Calls = append(self.Calls, "on")
	self.On = true
	return self.Err
}

func (self *MockSink) PowerOff() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Calls = append(self.Calls, "off")
	self.On = false
	return self.Err
}

func (self *MockSink) Last() *Frame {
	self.mu.Lock()
	defer self.mu.Unlock()
	if len(self.Frames) == 0 {
		return nil
	}
	return self.Frames[len(self.Frames)-1]
}

func (self *MockSink) History() []string {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]string(nil), self.Calls...)
}

func (self *MockSink) Reset() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Frames = nil
	self.Calls = nil
}

// TextSink prints frames as text art, for development without display.
type TextSink struct {
	W io.Writer
}

func (self TextSink) Show(f *Frame) error {
	_, err := io.WriteString(self.W, f.String2())
	return err
}
func (self TextSink) PowerOn() error {
	_, err := fmt.Fprintln(self.W, "[display on]")
	return err
}
func (self TextSink) PowerOff() error {
	_, err := fmt.Fprintln(self.W, "[display off]")
	return err
}

// NopSink is used when display is absent.
type NopSink struct{}

func (NopSink) Show(*Frame) error { return nil }
func (NopSink) PowerOn() error    { return nil }
func (NopSink) PowerOff() error   { return nil }
