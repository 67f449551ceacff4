// Package linky decodes Linky meter teleinformation (TIC historique mode).
// Meter sends frames of "LABEL SP DATA SP CHECKSUM" groups, one per line.
// ADCO group starts every frame.
package linky

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
)

const (
	KeyAdco = "ADCO" // meter address, frame start
	KeyPtec = "PTEC" // current tariff period
	KeyHchc = "HCHC" // off-peak index, Wh
	KeyHchp = "HCHP" // peak index, Wh
)

var (
	ErrIncompleteFrame = errors.New("linky incomplete frame")
	ErrLine            = errors.New("linky corrupted line")
	ErrChecksum        = errors.New("linky checksum mismatch")
)

var requiredKeys = [...]string{KeyAdco, KeyPtec, KeyHchc, KeyHchp}

type Decoder struct {
	Log      *log2.Log
	Checksum bool
	Now      func() time.Time

	pub types.Publisher
	buf map[string]string
}

func NewDecoder(log *log2.Log, pub types.Publisher, checksum bool) *Decoder {
	return &Decoder{
		Log:      log,
		Checksum: checksum,
		Now:      func() time.Time { return time.Now().UTC() },
		pub:      pub,
		buf:      make(map[string]string, 16),
	}
}

// Run reads lines until error. First line is dropped, it may be
// a tail of frame in progress. Corrupted lines and frames are logged and skipped.
func (self *Decoder) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			self.Log.Debugf("linky skip first line=%q", scanner.Text())
			continue
		}
		if err := self.Feed(scanner.Text()); err != nil {
			self.Log.Debugf("linky line=%q err=%v", scanner.Text(), err)
		}
	}
	return errors.Annotate(scanner.Err(), "linky read")
}

// Feed accumulates one group line. ADCO line materializes previous frame.
// Returned error concerns only this line or discarded frame, decoding may continue.
func (self *Decoder) Feed(line string) error {
	line = strings.Map(func(r rune) rune {
		switch r {
		case 0x02, 0x03, '\r', '\n':
			return -1
		}
		return r
	}, line)
	if strings.TrimSpace(line) == "" {
		return nil
	}
	key, value, err := self.parseLine(line)
	if err != nil {
		return err
	}

	var frameErr error
	if key == KeyAdco {
		if len(self.buf) != 0 {
			if m, err := self.materialize(); err == nil {
				self.pub.Publish(m)
			} else {
				frameErr = errors.Annotatef(err, "discard frame len=%d", len(self.buf))
			}
		}
		self.buf = make(map[string]string, 16)
	}
	self.buf[key] = value
	return frameErr
}

func (self *Decoder) parseLine(line string) (string, string, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", errors.Annotatef(ErrLine, "tokens=%d", len(parts))
	}
	key, value := parts[0], parts[1]
	if self.Checksum {
		expect := Checksum(key, value)
		got := byte(' ')
		if len(parts) == 3 {
			if len(parts[2]) != 1 {
				return "", "", errors.Annotatef(ErrChecksum, "key=%s token=%q", key, parts[2])
			}
			got = parts[2][0]
		}
		if got != expect {
			return "", "", errors.Annotatef(ErrChecksum, "key=%s expected=%q actual=%q", key, expect, got)
		}
	}
	return key, value, nil
}

func (self *Decoder) materialize() (types.LinkyMeasurement, error) {
	for _, key := range requiredKeys {
		if _, ok := self.buf[key]; !ok {
			return types.LinkyMeasurement{}, errors.Annotatef(ErrIncompleteFrame, "missing %s", key)
		}
	}
	hchc, err := strconv.ParseUint(self.buf[KeyHchc], 10, 64)
	if err != nil {
		return types.LinkyMeasurement{}, errors.Annotatef(ErrIncompleteFrame, "%s=%s", KeyHchc, self.buf[KeyHchc])
	}
	hchp, err := strconv.ParseUint(self.buf[KeyHchp], 10, 64)
	if err != nil {
		return types.LinkyMeasurement{}, errors.Annotatef(ErrIncompleteFrame, "%s=%s", KeyHchp, self.buf[KeyHchp])
	}
	ptec := self.buf[KeyPtec]
	if len(ptec) > 2 {
		ptec = ptec[:2]
	}
	return types.LinkyMeasurement{
		Time: self.Now(),
		Adco: self.buf[KeyAdco],
		Ptec: ptec,
		Hchc: hchc,
		Hchp: hchp,
	}, nil
}

// Checksum of historique group: sum of "LABEL SP DATA" bytes, low 6 bits, plus 0x20.
func Checksum(key, value string) byte {
	var sum uint
	for i := 0; i < len(key); i++ {
		sum += uint(key[i])
	}
	sum += ' '
	for i := 0; i < len(value); i++ {
		sum += uint(value[i])
	}
	return byte(sum&0x3f) + 0x20
}
