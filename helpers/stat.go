package helpers

import (
	"expvar"
	"io"
	"sync"
)

// StatReader counts bytes read into expvar, e.g. serial traffic per device.
type StatReader struct {
	R io.Reader
	V *expvar.Int
	F int64
}

var _ io.Reader = &StatReader{}

func NewStatReader(r io.Reader, expvar *expvar.Int, fix int64) io.Reader {
	if expvar == nil {
		return r
	}
	return &StatReader{R: r, F: fix, V: expvar}
}

func (sr *StatReader) Read(p []byte) (n int, err error) {
	n, err = sr.R.Read(p)
	if n > 0 {
		sr.V.Add(int64(n) + sr.F)
	}
	return
}

var statMu sync.Mutex

// StatVar returns existing or new published expvar.Int.
func StatVar(name string) *expvar.Int {
	statMu.Lock()
	defer statMu.Unlock()
	if v, ok := expvar.Get(name).(*expvar.Int); ok {
		return v
	}
	return expvar.NewInt(name)
}
