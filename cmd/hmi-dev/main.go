// Developer console for display pages without hardware.
// Frames are printed as text art, commands come from prompt or piped stdin.
package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/energymonitor/energymonitor/helpers/cli"
	"github.com/energymonitor/energymonitor/internal/button"
	"github.com/energymonitor/energymonitor/internal/dispatch"
	"github.com/energymonitor/energymonitor/internal/hmi"
	"github.com/energymonitor/energymonitor/internal/linky"
	"github.com/energymonitor/energymonitor/internal/rpict"
	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

var log = log2.NewStderr(log2.LDebug)

const pressDuration = 150 * time.Millisecond

type console struct {
	disp   *dispatch.Dispatcher
	button *button.Button
	config button.Config
	linky  *linky.Decoder
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagQR := cmdline.String("qr", "", "QR page url")
	flagSleep := cmdline.Duration("sleep", 30*time.Second, "inactivity timeout")
	flagHold := cmdline.Duration("hold", time.Second, "hold threshold")
	_ = cmdline.Parse(os.Args[1:]) // ExitOnError

	log.SetFlags(log2.LInteractiveFlags)

	a := alive.NewAlive()
	d := dispatch.NewDispatcher(log, a)
	h := hmi.NewHMI(log, hmi.Config{QRURL: *flagQR, Version: "dev"}, hmi.TextSink{W: os.Stdout})
	if err := d.Subscribe("hmi", h.Handle); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	go d.Run()
	if err := h.Start(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	c := &console{
		disp: d,
		config: button.Config{
			Debounce: button.DefaultDebounce,
			Hold:     *flagHold,
			Sleep:    *flagSleep,
			Wakeup:   *flagSleep * 2,
		},
		linky: linky.NewDecoder(log, d, false),
	}
	c.button = button.NewButton(log, c.config, d)
	c.button.Start()

	err := cli.MainLoop("hmi-dev", c.exec, complete)
	c.button.Stop()
	if err := h.Shutdown(); err != nil {
		log.Error(err)
	}
	a.Stop()
	a.Wait()
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

func (self *console) exec(line string) bool {
	parts := strings.SplitN(line, " ", 2)
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	switch parts[0] {
	case "quit", "exit":
		return true

	case "press":
		self.click(pressDuration)

	case "hold":
		self.click(self.config.Hold + pressDuration)

	case "rpict":
		m, err := rpict.Parse(arg, time.Now())
		if err != nil {
			log.Errorf("rpict err=%v", err)
			return false
		}
		self.disp.Publish(m)

	case "linky":
		if err := self.linky.Feed(arg); err != nil {
			log.Errorf("linky err=%v", err)
		}

	case "ready":
		source, err := types.ParseSource(arg)
		if err != nil {
			log.Errorf("ready err=%v", err)
			return false
		}
		self.disp.Publish(types.Ready{Source: source})

	default:
		log.Errorf("unknown command=%s", parts[0])
	}
	return false
}

// click presses button for real duration, hold timer runs on wall clock.
func (self *console) click(d time.Duration) {
	t := time.Now()
	self.button.Transition(button.Edge{Time: t, Pressed: true})
	time.Sleep(d)
	self.button.Transition(button.Edge{Time: t.Add(d), Pressed: false})
}

func complete(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "press", Description: "short button press"},
		{Text: "hold", Description: "button press past hold threshold"},
		{Text: "rpict", Description: "rpict <node> <15 phase values>"},
		{Text: "linky", Description: "linky <KEY> <VALUE>, ADCO publishes previous frame"},
		{Text: "ready", Description: "ready rpict|linky|datalogger"},
		{Text: "quit"},
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}
