// Package rpict decodes RPICT3V1 (Raspberry Pi current/voltage HAT) output.
// Each line: node id, then for phases 1..3:
// real power, apparent power, Irms, Vrms, power factor.
package rpict

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
)

const (
	PhaseFields = 5
	TokenCount  = 1 + 3*PhaseFields
)

var (
	ErrTokenCount = errors.New("rpict token count")
	ErrToken      = errors.New("rpict invalid token")
)

type Decoder struct {
	Log *log2.Log
	Now func() time.Time

	pub types.Publisher
}

func NewDecoder(log *log2.Log, pub types.Publisher) *Decoder {
	return &Decoder{
		Log: log,
		Now: func() time.Time { return time.Now().UTC() },
		pub: pub,
	}
}

// Run decodes lines until read error. Malformed line is logged and skipped.
func (self *Decoder) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := Parse(line, self.Now())
		if err != nil {
			self.Log.Debugf("rpict line=%q err=%v", line, err)
			continue
		}
		self.pub.Publish(m)
	}
	return errors.Annotate(scanner.Err(), "rpict read")
}

func Parse(line string, now time.Time) (types.RpictMeasurement, error) {
	parts := strings.Fields(line)
	if len(parts) != TokenCount {
		return types.RpictMeasurement{}, errors.Annotatef(ErrTokenCount, "expected=%d actual=%d", TokenCount, len(parts))
	}
	node, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return types.RpictMeasurement{}, errors.Annotatef(ErrToken, "node_id=%q", parts[0])
	}
	var fs [TokenCount - 1]float64
	for i, s := range parts[1:] {
		fs[i], err = strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(fs[i]) || math.IsInf(fs[i], 0) {
			return types.RpictMeasurement{}, errors.Annotatef(ErrToken, "position=%d token=%q", i+1, s)
		}
	}
	return types.RpictMeasurement{
		Time:   now,
		NodeID: int(node),
		L1:     phase(fs[0:PhaseFields]),
		L2:     phase(fs[PhaseFields : 2*PhaseFields]),
		L3:     phase(fs[2*PhaseFields : 3*PhaseFields]),
	}, nil
}

func phase(f []float64) types.Phase {
	return types.Phase{
		RealPower:     f[0],
		ApparentPower: f[1],
		Irms:          f[2],
		Vrms:          f[3],
		PowerFactor:   f[4],
	}
}
