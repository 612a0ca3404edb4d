package cmd

import (
	"os"
	"runtime"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

var (
	stdinIsPiped     = func() bool { return !term.IsTerminal(int(os.Stdin.Fd())) }
	stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	termGetSize      = term.GetSize
	openTerminalIOFn = openTerminalIO
)

// programOptions returns the tea options for the panel. When the document
// came from a pipe the panel reads keys from the controlling terminal.
func programOptions() ([]tea.ProgramOption, func()) {
	cleanup := func() {}
	var opts []tea.ProgramOption
	if w, h, err := termGetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		opts = append(opts, tea.WithWindowSize(w, h))
	}
	if !stdinIsPiped() {
		return opts, cleanup
	}
	in, out, err := openTerminalIOFn()
	if err != nil {
		return opts, cleanup
	}
	cleanup = func() {
		_ = in.Close()
		if out != nil && out != in {
			_ = out.Close()
		}
	}
	opts = append(opts, tea.WithInput(in))
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	return opts, cleanup
}

func openTerminalIO() (*os.File, *os.File, error) {
	in, out := terminalDeviceNames(runtime.GOOS)
	input, err := os.OpenFile(in, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	if out == in {
		return input, input, nil
	}
	output, err := os.OpenFile(out, os.O_RDWR, 0)
	if err != nil {
		return input, nil, err
	}
	return input, output, nil
}

func terminalDeviceNames(goos string) (string, string) {
	if goos == "windows" {
		return "CONIN$", "CONOUT$"
	}
	return "/dev/tty", "/dev/tty"
}
