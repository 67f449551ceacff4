package hassmqtt

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type mockMsg struct {
	topic   string
	retain  bool
	payload []byte
}

type mqttMock struct {
	mu        sync.Mutex
	pub       []mockMsg
	connected bool
}

func (self *mqttMock) published() []mockMsg {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]mockMsg(nil), self.pub...)
}

func (self *mqttMock) Disconnect(uint)        { self.connected = false }
func (self *mqttMock) IsConnected() bool      { return self.connected }
func (self *mqttMock) IsConnectionOpen() bool { return self.connected }
func (self *mqttMock) Connect() mqtt.Token    { self.connected = true; return mockToken{} }

func (self *mqttMock) Publish(topic string, qos byte, retain bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	self.mu.Lock()
	self.pub = append(self.pub, mockMsg{topic, retain, b})
	self.mu.Unlock()
	return mockToken{}
}

func (self *mqttMock) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (self *mqttMock) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (self *mqttMock) Unsubscribe(...string) mqtt.Token        { panic("not implemented") }
func (self *mqttMock) AddRoute(string, mqtt.MessageHandler)    { panic("not implemented") }
func (self *mqttMock) OptionsReader() mqtt.ClientOptionsReader { panic("not implemented") }

type mockToken struct{ error }

func (tok mockToken) Error() error                   { return tok.error }
func (tok mockToken) Wait() bool                     { return true }
func (tok mockToken) WaitTimeout(time.Duration) bool { return true }
func (tok mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
