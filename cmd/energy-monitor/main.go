// Appliance daemon: decoders, display, button and downstream subscribers.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/energymonitor/energymonitor/helpers"
	"github.com/energymonitor/energymonitor/internal/state"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
)

var BuildVersion string = "unknown" // set by ldflags -X

const shutdownTimeout = 5 * time.Second

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "energy-monitor.hcl", "")
	flagLogLevel := cmdline.String("log-level", "", "overrides config log_level")
	flagVersion := cmdline.Bool("version", false, "print build version and exit")
	_ = cmdline.Parse(os.Args[1:]) // ExitOnError

	if *flagVersion {
		fmt.Printf("energy-monitor %s\n", BuildVersion)
		return
	}

	if sdnotify("STATUS=starting") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	levelName := config.LogLevel
	if *flagLogLevel != "" {
		levelName = *flagLogLevel
	}
	level, err := log2.ParseLevel(levelName)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	log.SetLevel(level)

	ctx, g := state.NewContext(log)
	g.BuildVersion = BuildVersion
	g.MustInit(ctx, config)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sdnotify(daemon.SdNotifyReady)
	g.Log.Infof("init complete, running")

	select {
	case sig := <-sigs:
		g.Log.Infof("signal=%s shutdown", sig.String())
	case <-g.Alive.WaitChan():
	}
	sdnotify(daemon.SdNotifyStopping)
	if err := g.Shutdown(shutdownTimeout); err != nil {
		g.Log.Errorf("shutdown err=%v", err)
	}
	g.Log.Infof("exit errors=%s", helpers.StatVar("errors").String())
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Errorf("sdnotify: %s", errors.ErrorStack(err))
	}
	return ok
}
