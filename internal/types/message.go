// Package types holds values passed through dispatcher.
// Consumers switch on concrete Message type, so adding a kind here
// shows up in every subscriber's default branch.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
)

type Message interface {
	fmt.Stringer
	message()
}

// Phase metrics in RPICT wire order.
type Phase struct {
	RealPower     float64 // W
	ApparentPower float64 // VA
	Irms          float64 // A
	Vrms          float64 // V
	PowerFactor   float64
}

type RpictMeasurement struct {
	Time   time.Time
	NodeID int
	L1     Phase
	L2     Phase
	L3     Phase
}

func (RpictMeasurement) message()           {}
func (m RpictMeasurement) Phases() [3]Phase { return [3]Phase{m.L1, m.L2, m.L3} }
func (m RpictMeasurement) String() string {
	return fmt.Sprintf("Rpict(node=%d P=%.1f/%.1f/%.1fVA V=%.1f/%.1f/%.1f)",
		m.NodeID, m.L1.ApparentPower, m.L2.ApparentPower, m.L3.ApparentPower,
		m.L1.Vrms, m.L2.Vrms, m.L3.Vrms)
}

//go:generate stringer -type=TariffPeriod -trimprefix=Tariff
type TariffPeriod uint8

const (
	TariffUnknown TariffPeriod = iota
	TariffHC
	TariffHP
)

// LinkyMeasurement indices are cumulative Wh.
type LinkyMeasurement struct {
	Time time.Time
	Adco string
	Ptec string
	Hchc uint64
	Hchp uint64
}

func (LinkyMeasurement) message() {}
func (m LinkyMeasurement) TariffPeriod() TariffPeriod {
	switch m.Ptec {
	case "HC":
		return TariffHC
	case "HP":
		return TariffHP
	}
	return TariffUnknown
}
func (m LinkyMeasurement) String() string {
	return fmt.Sprintf("Linky(adco=%s ptec=%s hchc=%d hchp=%d)", m.Adco, m.Ptec, m.Hchc, m.Hchp)
}

//go:generate stringer -type=Source -trimprefix=Source
type Source uint8

const (
	SourceInvalid Source = iota
	SourceRpict
	SourceLinky
	SourceDatalogger
)

// ParseSource accepts lower case names: rpict, linky, datalogger.
func ParseSource(s string) (Source, error) {
	for x := SourceRpict; x <= SourceDatalogger; x++ {
		if strings.EqualFold(s, x.String()) {
			return x, nil
		}
	}
	return SourceInvalid, errors.NotValidf("source=%s", s)
}

// Ready is sent once per source after successful init.
type Ready struct {
	Source Source
}

func (Ready) message()         {}
func (r Ready) String() string { return "Ready(" + r.Source.String() + ")" }

//go:generate stringer -type=EventKind -trimprefix=Event
type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventPress
	EventHeld
	EventWakeup
	EventInactivity
)

type Event struct {
	Kind EventKind
}

func (Event) message()         {}
func (e Event) String() string { return "Event(" + e.Kind.String() + ")" }

// Publisher is implemented by dispatch.Dispatcher.
type Publisher interface {
	Publish(Message)
}
