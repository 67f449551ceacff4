package hmi

import (
	"image"
	"image/color"
	"strings"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 128
	Height = 32
)

var (
	face      font.Face = basicfont.Face7x13
	colorOn             = color.Gray{Y: 0xff}
	colorOff            = color.Gray{Y: 0}
	FrameSize           = image.Point{X: Width, Y: Height}
)

// Frame is monochrome bitmap handed to display sink.
type Frame struct {
	img *image.Gray
}

func NewFrame(size image.Point) *Frame {
	return &Frame{img: image.NewGray(image.Rectangle{Max: size})}
}

func (f *Frame) Size() image.Point { return f.img.Rect.Max }

func (f *Frame) Clear() {
	for i := range f.img.Pix {
		f.img.Pix[i] = 0
	}
}

func (f *Frame) Get(x, y int) bool { return f.img.GrayAt(x, y).Y >= 0x80 }
func (f *Frame) Set(x, y int, on bool) {
	c := colorOff
	if on {
		c = colorOn
	}
	f.img.SetGray(x, y, c)
}

func (f *Frame) Clone() *Frame {
	c := NewFrame(f.Size())
	copy(c.img.Pix, f.img.Pix)
	return c
}

func (f *Frame) Equal(other *Frame) bool {
	if f.Size() != other.Size() {
		return false
	}
	for i := range f.img.Pix {
		if (f.img.Pix[i] >= 0x80) != (other.img.Pix[i] >= 0x80) {
			return false
		}
	}
	return true
}

func (f *Frame) CountOn() int {
	n := 0
	for _, p := range f.img.Pix {
		if p >= 0x80 {
			n++
		}
	}
	return n
}

// Text draws s with 7x13 font, returns x after last glyph.
func (f *Frame) Text(x, baseline int, s string) int {
	d := font.Drawer{
		Dst:  f.img,
		Src:  image.NewUniform(colorOn),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
	return d.Dot.X.Ceil()
}

func TextWidth(s string) int { return font.MeasureString(face, s).Ceil() }

// Rect outline, or filled. Bounds are inclusive.
func (f *Frame) Rect(r image.Rectangle, fill bool) {
	r = r.Canon()
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			if fill || y == r.Min.Y || y == r.Max.Y || x == r.Min.X || x == r.Max.X {
				f.Set(x, y, true)
			}
		}
	}
}

// QR draws code centered, without quiet zone.
func (f *Frame) QR(text string, level qrcode.RecoveryLevel) error {
	qr, err := qrcode.New(text, level)
	if err != nil {
		return errors.Annotate(err, "QR")
	}
	qr.DisableBorder = true
	size := f.Size()
	minSize := minInt(size.X, size.Y)
	img := qr.Image(minSize).(*image.Paletted)
	if !img.Rect.In(image.Rectangle{Max: size}) {
		return errors.Errorf("QR image size=%s > display size=%s", img.Bounds().Max.String(), size.String())
	}
	offset := image.Point{X: (size.X - img.Rect.Dx()) / 2, Y: (size.Y - img.Rect.Dy()) / 2}
	f.paletted2(img, offset)
	return nil
}

// PackPages packs pixels SSD13xx style: byte per column of 8 rows, LSB on top.
func (f *Frame) PackPages() []byte {
	size := f.Size()
	pages := (size.Y + 7) / 8
	b := make([]byte, size.X*pages)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if f.Get(x, y) {
				b[(y/8)*size.X+x] |= 1 << uint(y%8)
			}
		}
	}
	return b
}

// String2 renders frame as text art, two chars per pixel.
func (f *Frame) String2() string {
	size := f.Size()
	b := strings.Builder{}
	b.Grow((size.X*len("██") + 1) * size.Y)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if f.Get(x, y) {
				b.WriteString("██")
			} else {
				b.WriteString("  ")
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
}

// QR image palette: 0=background 1=module.
func (f *Frame) paletted2(img *image.Paletted, offset image.Point) {
	min, max := img.Bounds().Min, img.Bounds().Max
	for y := min.Y; y < max.Y; y++ {
		for x := min.X; x < max.X; x++ {
			palidx := img.Pix[img.PixOffset(x, y)]
			f.Set(x+offset.X, y+offset.Y, palidx != 0)
		}
	}
}

func minInt(i1, i2 int) int {
	if i1 <= i2 {
		return i1
	}
	return i2
}
