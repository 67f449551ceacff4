package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFormatFlags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect uint32
		err    bool
	}{
		{Format7E1, unix.CS7 | unix.PARENB, false},
		{Format8N1, unix.CS8, false},
		{"8O2", unix.CS8 | unix.PARENB | unix.PARODD | unix.CSTOPB, false},
		{"9N1", 0, true},
		{"8X1", 0, true},
		{"8N3", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		flags, err := FormatFlags(c.input)
		if c.err {
			assert.Error(t, err, c.input)
			continue
		}
		require.NoError(t, err, c.input)
		assert.Equal(t, c.expect, flags, c.input)
	}
}

func TestBaudFlag(t *testing.T) {
	t.Parallel()

	f, err := BaudFlag(1200)
	require.NoError(t, err)
	assert.Equal(t, uint32(unix.B1200), f)
	f, err = BaudFlag(38400)
	require.NoError(t, err)
	assert.Equal(t, uint32(unix.B38400), f)
	_, err = BaudFlag(1234)
	assert.Error(t, err)
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := Open("/dev/energy-monitor-absent", 1200, Format7E1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial open device=/dev/energy-monitor-absent")
}
