package hmi

import (
	"fmt"
	"image"
	"math"

	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/skip2/go-qrcode"
)

// Page renders its own state. Pages are mutated only from HMI lane.
type Page interface {
	Name() string
	Render(f *Frame) error
}

var readySources = [...]struct {
	source types.Source
	label  string
}{
	{types.SourceRpict, "R"},
	{types.SourceLinky, "L"},
	{types.SourceDatalogger, "D"},
}

type LandingPage struct {
	Version string
	ready   map[types.Source]bool
}

func NewLandingPage(version string) *LandingPage {
	return &LandingPage{Version: version, ready: make(map[types.Source]bool, len(readySources))}
}

func (self *LandingPage) Name() string { return "landing" }

// SetReady returns true if indicator changed.
func (self *LandingPage) SetReady(source types.Source) bool {
	if self.ready[source] {
		return false
	}
	self.ready[source] = true
	return true
}

func (self *LandingPage) Ready(source types.Source) bool { return self.ready[source] }

func (self *LandingPage) Render(f *Frame) error {
	const title = "energy-monitor"
	f.Rect(image.Rect(0, 0, Width-1, 15), false)
	f.Text((Width-TextWidth(title))/2, 12, title)

	x := 2
	for _, s := range readySources {
		f.Rect(image.Rect(x, 22, x+6, 28), self.ready[s.source])
		x = f.Text(x+8, 30, s.label) + 5
	}
	if self.Version != "" {
		f.Text(Width-TextWidth(self.Version)-1, 30, self.Version)
	}
	return nil
}

// RpictPage shows apparent power bar per phase with running maximum marker,
// total power and average voltage.
type RpictPage struct {
	MaxLinePower float64 // W, bar full scale
	last         types.RpictMeasurement
	valid        bool
	peak         [3]float64
}

func NewRpictPage(maxLinePower float64) *RpictPage {
	return &RpictPage{MaxLinePower: maxLinePower}
}

func (self *RpictPage) Name() string { return "rpict" }

func (self *RpictPage) Update(m types.RpictMeasurement) {
	self.last = m
	self.valid = true
	for i, p := range m.Phases() {
		self.peak[i] = math.Max(self.peak[i], p.ApparentPower)
	}
}

func (self *RpictPage) Peak(phase int) float64 { return self.peak[phase] }

func (self *RpictPage) Render(f *Frame) error {
	if !self.valid {
		f.Text(1, 12, "RPICT")
		f.Text(1, 28, "waiting data")
		return nil
	}
	const barWidth = 72
	const fillWidth = barWidth - 2 // inside outline, columns 1..fillWidth
	var total, vsum float64
	for i, p := range self.last.Phases() {
		y := i * 11
		f.Rect(image.Rect(0, y, barWidth-1, y+8), false)
		if w := self.scale(p.ApparentPower, fillWidth); w > 0 {
			f.Rect(image.Rect(1, y+1, w, y+7), true)
		}
		// marker is on last fill column when power equals peak
		px := self.scale(self.peak[i], fillWidth)
		if px < 1 {
			px = 1
		}
		f.Rect(image.Rect(px, y, px, y+8), true)
		total += p.ApparentPower
		vsum += p.Vrms
	}
	f.Text(77, 11, fmt.Sprintf("%.1fkW", total/1000))
	f.Text(77, 27, fmt.Sprintf("%.2fV", vsum/3))
	return nil
}

func (self *RpictPage) scale(v float64, width int) int {
	if self.MaxLinePower <= 0 || v <= 0 {
		return 0
	}
	k := v / self.MaxLinePower
	if k > 1 {
		k = 1
	}
	return int(math.Round(k * float64(width)))
}

type LinkyPage struct {
	last  types.LinkyMeasurement
	valid bool
}

func NewLinkyPage() *LinkyPage { return &LinkyPage{} }

func (self *LinkyPage) Name() string { return "linky" }

func (self *LinkyPage) Update(m types.LinkyMeasurement) {
	self.last = m
	self.valid = true
}

func (self *LinkyPage) Render(f *Frame) error {
	if !self.valid {
		f.Text(1, 12, "LINKY")
		f.Text(1, 28, "waiting data")
		return nil
	}
	period := self.last.TariffPeriod()
	f.Text(0, 9, "ID "+self.last.Adco)
	f.Text(0, 20, tariffLine(period == types.TariffHP, "HP", self.last.Hchp))
	f.Text(0, 31, tariffLine(period == types.TariffHC, "HC", self.last.Hchc))
	return nil
}

func tariffLine(active bool, label string, wh uint64) string {
	mark := " "
	if active {
		mark = ">"
	}
	return fmt.Sprintf("%s%s %9.3fkWh", mark, label, float64(wh)/1000)
}

// QRPage shows fixed link, e.g. to dashboard. No measurement updates it.
type QRPage struct {
	URL string
}

func (self *QRPage) Name() string { return "qr" }

func (self *QRPage) Render(f *Frame) error {
	return f.QR(self.URL, qrcode.Low)
}
