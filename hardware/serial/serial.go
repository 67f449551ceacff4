// Package serial opens tty in raw mode with given baud and character format.
package serial

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/energymonitor/energymonitor/helpers"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const (
	Format7E1 = "7E1" // Linky TIC historique
	Format8N1 = "8N1"
)

var baudFlags = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

type Port struct {
	f      *os.File
	r      io.Reader
	device string
}

// Open configures device for blocking reads, one byte minimum.
// Bytes read are counted in expvar serial.<device>.read_bytes.
func Open(device string, baud int, format string) (*Port, error) {
	speed, err := BaudFlag(baud)
	if err != nil {
		return nil, errors.Annotatef(err, "serial device=%s", device)
	}
	cflag, err := FormatFlags(format)
	if err != nil {
		return nil, errors.Annotatef(err, "serial device=%s", device)
	}

	f, err := os.OpenFile(device, syscall.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "serial open device=%s", device)
	}
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "serial TCGETS device=%s", device)
	}
	t.Iflag = unix.IGNBRK
	if cflag&unix.PARENB != 0 {
		t.Iflag |= unix.INPCK | unix.ISTRIP
	}
	t.Oflag = 0
	t.Lflag = 0
	t.Cflag = cflag | speed | unix.CLOCAL | unix.CREAD
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err = unix.IoctlSetTermios(fd, unix.TCSETSF, t); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "serial TCSETSF device=%s baud=%d format=%s", device, baud, format)
	}

	stat := helpers.StatVar(fmt.Sprintf("serial.%s.read_bytes", device))
	return &Port{f: f, r: helpers.NewStatReader(f, stat, 0), device: device}, nil
}

func (self *Port) Read(p []byte) (int, error) { return self.r.Read(p) }
func (self *Port) Close() error               { return self.f.Close() }
func (self *Port) String() string             { return self.device }

func BaudFlag(baud int) (uint32, error) {
	if f, ok := baudFlags[baud]; ok {
		return f, nil
	}
	return 0, errors.NotSupportedf("baud=%d", baud)
}

// FormatFlags parses "<data bits><parity N|E|O><stop bits>" into termios cflag.
func FormatFlags(format string) (uint32, error) {
	if len(format) != 3 {
		return 0, errors.NotValidf("serial format=%q", format)
	}
	var cflag uint32
	switch format[0] {
	case '5':
		cflag |= unix.CS5
	case '6':
		cflag |= unix.CS6
	case '7':
		cflag |= unix.CS7
	case '8':
		cflag |= unix.CS8
	default:
		return 0, errors.NotValidf("serial format=%q data bits", format)
	}
	switch format[1] {
	case 'N', 'n':
	case 'E', 'e':
		cflag |= unix.PARENB
	case 'O', 'o':
		cflag |= unix.PARENB | unix.PARODD
	default:
		return 0, errors.NotValidf("serial format=%q parity", format)
	}
	switch format[2] {
	case '1':
	case '2':
		cflag |= unix.CSTOPB
	default:
		return 0, errors.NotValidf("serial format=%q stop bits", format)
	}
	return cflag, nil
}
