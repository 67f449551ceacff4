package state

import (
	"context"
	"os"
	"testing"

	"github.com/energymonitor/energymonitor/internal/hmi"
	"github.com/energymonitor/energymonitor/log2"
)

const testConfigBase = `
hardware {
	button { driver = "none" }
	display { enable = false }
	rpict { enable = false }
	linky { enable = false }
}
influxdb { enable = false }
`

// NewTestContext prepares Global with all devices off and mock display,
// confString is applied over that base. Init is left to caller.
func NewTestContext(t testing.TB, confString string) (context.Context, *Global, *Config) {
	fs := NewMockFullReader(map[string]string{
		"test-base":   testConfigBase,
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("energymonitor_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log)
	g.BuildVersion = "test"
	g.Hardware.Display.Sink = &hmi.MockSink{}
	cfg, err := ReadConfig(log, fs, "test-base", "test-inline")
	if err != nil {
		t.Fatal(err)
	}
	return ctx, g, cfg
}
