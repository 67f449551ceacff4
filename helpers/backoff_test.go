package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoubling(t *testing.T) {
	t.Parallel()

	b := Backoff{Min: time.Second, Max: 600 * time.Second, K: 2, Res: time.Second}
	assert.Equal(t, time.Duration(0), b.DelayBefore())
	expect := []time.Duration{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 600, 600}
	for i, e := range expect {
		b.Failure()
		assert.Equal(t, e*time.Second, b.Next(), "step=%d", i)
	}
	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffDelayAfter(t *testing.T) {
	t.Parallel()

	b := Backoff{Min: time.Hour, Max: 4 * time.Hour, K: 2, Res: time.Minute}
	d := b.DelayAfter(false)
	assert.True(t, d > time.Hour && d <= 2*time.Hour, "delay=%s", d)
	d = b.DelayAfter(true)
	assert.True(t, d > 0 && d <= time.Hour, "delay=%s", d)
}
