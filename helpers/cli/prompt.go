// Package cli runs line oriented tools: interactive prompt on terminal,
// plain line by line execution when stdin is a pipe.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

type ExecFunc func(line string)

// Completer suggests from fixed words, matching prefix of the last word.
func Completer(words ...string) prompt.Completer {
	ss := make([]prompt.Suggest, len(words))
	for i, w := range words {
		ss[i] = prompt.Suggest{Text: w}
	}
	return func(d prompt.Document) []prompt.Suggest {
		w := d.GetWordBeforeCursor()
		if w == "" {
			return nil
		}
		return prompt.FilterHasPrefix(ss, w, true)
	}
}

// MainLoop returns when stdin ends. Signals exit the process with onSignal run first.
func MainLoop(tag string, exec ExecFunc, complete prompt.Completer, onSignal func()) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-signalCh
		if onSignal != nil {
			onSignal()
		}
		os.Exit(1)
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(prompt.Executor(exec), complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return
	}
	RunLines(os.Stdin, exec)
}

// RunLines executes non-empty trimmed lines from r.
func RunLines(r io.Reader, exec ExecFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			exec(line)
		}
	}
}
