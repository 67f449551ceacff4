package hmi

import (
	"image"
	"strings"
	"testing"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQR(t *testing.T) {
	t.Parallel()

	f := NewFrame(image.Point{X: 21, Y: 21})
	blank := strings.Repeat(strings.Repeat("  ", 21)+"\n", 21)
	assert.Equal(t, blank, f.String2())

	const qrText = "energy-monitor"
	require.NoError(t, f.QR(qrText, qrcode.Low))
	qr, err := qrcode.New(qrText, qrcode.Low)
	require.NoError(t, err)
	qr.DisableBorder = true
	assert.Equal(t, qr.ToString(true), f.String2())

	f.Clear()
	assert.Equal(t, blank, f.String2())
}

func TestFrameQRTooLarge(t *testing.T) {
	t.Parallel()

	f := NewFrame(FrameSize)
	err := f.QR("http://energy-monitor.local:3000/d/metrology/overview?orgId=1&refresh=5s", qrcode.Low)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display size")
}

func TestFramePackPages(t *testing.T) {
	t.Parallel()

	f := NewFrame(FrameSize)
	f.Set(0, 0, true)
	f.Set(1, 7, true)
	f.Set(2, 8, true)
	f.Set(127, 31, true)
	b := f.PackPages()
	require.Len(t, b, Width*Height/8)
	assert.Equal(t, byte(0x01), b[0])
	assert.Equal(t, byte(0x80), b[1])
	assert.Equal(t, byte(0x01), b[Width+2])
	assert.Equal(t, byte(0x80), b[len(b)-1])
	assert.Equal(t, 4, f.CountOn())
}

func TestFrameText(t *testing.T) {
	t.Parallel()

	f := NewFrame(FrameSize)
	end := f.Text(0, 12, "HP")
	assert.Equal(t, 2*7, end)
	assert.Equal(t, 14, TextWidth("HP"))
	assert.True(t, f.CountOn() > 0)
	for y := 15; y < Height; y++ {
		for x := 0; x < Width; x++ {
			assert.False(t, f.Get(x, y), "x=%d y=%d below descent", x, y)
		}
	}

	g := f.Clone()
	assert.True(t, g.Equal(f))
	g.Set(100, 20, true)
	assert.False(t, g.Equal(f))
}

func TestFrameRect(t *testing.T) {
	t.Parallel()

	f := NewFrame(image.Point{X: 4, Y: 3})
	f.Rect(image.Rect(0, 0, 3, 2), false)
	assert.Equal(t, "████████\n██    ██\n████████\n", f.String2())
	f.Rect(image.Rect(1, 1, 2, 1), true)
	assert.Equal(t, 12, f.CountOn())
}
