package atomic_clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApi(t *testing.T) {
	t.Parallel()

	c := Now()
	tim := time.Now()
	const delta = 100 * time.Millisecond

	assert.InDelta(t, tim.UnixNano(), c.UnixNano(), float64(delta))

	c.SetTime(tim)
	assert.Equal(t, tim.UnixNano(), c.UnixNano())
	assert.True(t, tim.Equal(c.Time()))

	c.SetNow()
	assert.True(t, Since(c) < delta)
}

func TestElapsed(t *testing.T) {
	t.Parallel()

	var c Clock
	at := time.Unix(1600000000, 0)
	assert.True(t, c.IsZero())
	assert.Equal(t, time.Duration(0), c.Elapsed(at))

	c.SetTime(at)
	assert.False(t, c.IsZero())
	assert.Equal(t, 250*time.Millisecond, c.Elapsed(at.Add(250*time.Millisecond)))

	c.Reset()
	assert.True(t, c.IsZero())
	assert.Equal(t, int64(7), New(7).UnixNano())
}
