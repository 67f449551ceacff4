package hmi

import (
	"testing"
	"time"

	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage string

func (p fakePage) Name() string          { return string(p) }
func (p fakePage) Render(f *Frame) error { return nil }

var (
	press      = types.Event{Kind: types.EventPress}
	held       = types.Event{Kind: types.EventHeld}
	wakeup     = types.Event{Kind: types.EventWakeup}
	inactivity = types.Event{Kind: types.EventInactivity}
)

func sampleRpict(apparent float64) types.RpictMeasurement {
	return types.RpictMeasurement{
		Time:   time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC),
		NodeID: 11,
		L1:     types.Phase{RealPower: -82.96, ApparentPower: apparent, Irms: 1.64, Vrms: 230, PowerFactor: 0.194},
		L2:     types.Phase{RealPower: -50.23, ApparentPower: 144.52, Irms: 0.56, Vrms: 231, PowerFactor: 0.346},
		L3:     types.Phase{RealPower: 24.55, ApparentPower: 47.17, Irms: 0.18, Vrms: 232, PowerFactor: 0.509},
	}
}

var sampleLinky = types.LinkyMeasurement{
	Time: time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC),
	Adco: "041876097767",
	Ptec: "HP",
	Hchc: 19650909,
	Hchp: 43280553,
}

func newTestHMI(t testing.TB, config Config) (*HMI, *MockSink) {
	sink := &MockSink{}
	h := NewHMI(log2.NewTest(t, log2.LDebug), config, sink)
	require.NoError(t, h.Start())
	return h, sink
}

func renderPage(t testing.TB, p Page) *Frame {
	f := NewFrame(FrameSize)
	require.NoError(t, p.Render(f))
	return f
}

func frontName(h *HMI) string { return h.carousel.Front().Name() }

func TestCarousel(t *testing.T) {
	t.Parallel()

	a, b, c := fakePage("A"), fakePage("B"), fakePage("C")
	cs := NewCarousel(a, b, c)
	assert.Equal(t, Page(a), cs.Front())
	for i := 0; i < 3; i++ {
		cs.Next()
	}
	assert.Equal(t, Page(a), cs.Front())
	cs.Next()
	assert.Equal(t, []Page{b, c, a}, cs.Order())

	cs.Reset([]Page{c, a, b})
	assert.Equal(t, Page(c), cs.Front())
	assert.Equal(t, Page(a), cs.Next())
	assert.True(t, cs.IsFront(a))
}

func TestStartShowsLanding(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{Version: "v1"})

	assert.Equal(t, []string{"on", "show"}, sink.Calls)
	assert.Equal(t, "landing", frontName(h))
	assert.True(t, renderPage(t, h.landing).Equal(sink.Last()))
}

func TestPressRotation(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{})

	names := []string{}
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Handle(press))
		names = append(names, frontName(h))
	}
	assert.Equal(t, []string{"rpict", "linky", "landing"}, names)
	assert.Len(t, sink.Frames, 1+3)
}

func TestRenderOnlyFront(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{})
	sink.Reset()

	// landing in front, measurements update background pages silently
	require.NoError(t, h.Handle(sampleRpict(1000)))
	require.NoError(t, h.Handle(sampleLinky))
	assert.Len(t, sink.Frames, 0)

	require.NoError(t, h.Handle(press))
	require.Len(t, sink.Frames, 1)
	assert.True(t, renderPage(t, h.rpict).Equal(sink.Last()))

	require.NoError(t, h.Handle(sampleRpict(2000)))
	assert.Len(t, sink.Frames, 2)
	require.NoError(t, h.Handle(sampleLinky))
	assert.Len(t, sink.Frames, 2)
	require.NoError(t, h.Handle(types.Ready{Source: types.SourceRpict}))
	assert.Len(t, sink.Frames, 2)

	require.NoError(t, h.Handle(press))
	expect := NewLinkyPage()
	expect.Update(sampleLinky)
	assert.True(t, renderPage(t, expect).Equal(sink.Last()))
}

func TestReadyIdempotent(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{})

	before := sink.Last()
	require.NoError(t, h.Handle(types.Ready{Source: types.SourceLinky}))
	first := sink.Last()
	assert.False(t, first.Equal(before))
	require.NoError(t, h.Handle(types.Ready{Source: types.SourceLinky}))
	second := sink.Last()
	assert.True(t, first.Equal(second))
	assert.True(t, h.landing.Ready(types.SourceLinky))
	assert.False(t, h.landing.Ready(types.SourceRpict))
}

func TestInactivityWakeup(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{})

	require.NoError(t, h.Handle(press))
	require.NoError(t, h.Handle(press))
	assert.Equal(t, "linky", frontName(h))

	sink.Reset()
	require.NoError(t, h.Handle(inactivity))
	assert.Equal(t, []string{"off"}, sink.Calls)
	assert.False(t, sink.On)

	// state keeps updating while off, nothing drawn
	require.NoError(t, h.Handle(sampleLinky))
	require.NoError(t, h.Handle(sampleRpict(3000)))
	assert.Equal(t, []string{"off"}, sink.Calls)
	assert.Equal(t, 3000.0, h.rpict.Peak(0))

	require.NoError(t, h.Handle(wakeup))
	assert.Equal(t, []string{"off", "on", "show"}, sink.Calls)
	assert.Equal(t, "rpict", frontName(h))
	assert.True(t, renderPage(t, h.rpict).Equal(sink.Last()))

	// recovery order regardless of previous rotation
	require.NoError(t, h.Handle(press))
	assert.Equal(t, "linky", frontName(h))
	require.NoError(t, h.Handle(wakeup))
	assert.Equal(t, "rpict", frontName(h))
	require.NoError(t, h.Handle(press))
	require.NoError(t, h.Handle(press))
	assert.Equal(t, "landing", frontName(h))
}

func TestHeldNoop(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{})
	sink.Reset()

	require.NoError(t, h.Handle(held))
	assert.Len(t, sink.Calls, 0)
	assert.Equal(t, "landing", frontName(h))
	assert.Error(t, h.Handle(types.Event{Kind: types.EventInvalid}))
}

func TestRpictPeak(t *testing.T) {
	t.Parallel()

	p := NewRpictPage(DefaultMaxLinePower)
	p.Update(sampleRpict(1500))
	p.Update(sampleRpict(500))
	assert.Equal(t, 1500.0, p.Peak(0))
	assert.Equal(t, 144.52, p.Peak(1))

	// bar clipped at full scale
	over := NewRpictPage(100)
	over.Update(sampleRpict(1e6))
	assert.Equal(t, 70, over.scale(1e6, 70))
	assert.Equal(t, 0, over.scale(-5, 70))
	assert.True(t, renderPage(t, over).CountOn() > renderPage(t, p).CountOn())
}

func TestRpictPeakMarker(t *testing.T) {
	t.Parallel()

	p := NewRpictPage(1000)
	p.Update(sampleRpict(500))
	f := renderPage(t, p)
	// L1 bar interior row, fill ends at column 35 with marker on it
	assert.True(t, f.Get(35, 4))
	assert.False(t, f.Get(36, 4))

	p.Update(sampleRpict(200))
	f = renderPage(t, p)
	assert.True(t, f.Get(14, 4))
	assert.False(t, f.Get(15, 4))
	assert.True(t, f.Get(35, 4))
	assert.False(t, f.Get(36, 4))

	p.Update(sampleRpict(5000))
	f = renderPage(t, p)
	assert.True(t, f.Get(70, 4))
	assert.False(t, f.Get(72, 4))
}

func TestQRPage(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{QRURL: "http://em.local/"})

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Handle(press))
	}
	assert.Equal(t, "qr", frontName(h))
	assert.True(t, sink.Last().CountOn() > 0)
	require.NoError(t, h.Handle(press))
	assert.Equal(t, "landing", frontName(h))
}

func TestShutdown(t *testing.T) {
	t.Parallel()
	h, sink := newTestHMI(t, Config{})
	sink.Reset()

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"show", "off"}, sink.Calls)
	assert.Equal(t, 0, sink.Last().CountOn())

	require.NoError(t, h.Handle(wakeup))
	require.NoError(t, h.Handle(press))
	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"show", "off"}, sink.Calls)
}
