// Package cli runs interactive console for development tools.
package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// MainLoop reads commands from terminal with completion,
// or line by line from piped stdin. Returns when exit reports true or input ends.
// go-prompt has no clean exit, so terminal mode ends the process on exit.
func MainLoop(tag string, exec func(line string) (exit bool), complete func(d prompt.Document) []prompt.Suggest) error {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		p := prompt.New(
			func(line string) {
				if exec(strings.TrimSpace(line)) {
					os.Exit(0)
				}
			},
			complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		)
		p.Run()
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exec(line) {
			return nil
		}
	}
	return scanner.Err()
}
