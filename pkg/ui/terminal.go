package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Banner is printed at the start of interactive commands
const Banner = `
  ┌────────────────────────────────────────────────┐
  │  Transparent Classroom photo downloader        │
  └────────────────────────────────────────────────┘
`

var (
	outMu     sync.Mutex
	out       io.Writer = os.Stdout
	quietMode bool
	colorsOff bool
)

// SetOutput redirects all terminal output
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

// Output returns the current terminal writer
func Output() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return out
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(quiet bool) {
	outMu.Lock()
	defer outMu.Unlock()
	quietMode = quiet
}

// SetNoColor disables ANSI colors
func SetNoColor(off bool) {
	outMu.Lock()
	defer outMu.Unlock()
	colorsOff = off
}

// IsQuiet reports whether quiet mode is on
func IsQuiet() bool {
	outMu.Lock()
	defer outMu.Unlock()
	return quietMode
}

// IsTerminal reports whether stdout is attached to a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		outMu.Lock()
		off := colorsOff
		outMu.Unlock()
		if off {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func printf(always bool, format string, args ...interface{}) {
	outMu.Lock()
	w, quiet := out, quietMode
	outMu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// PrintBanner prints the banner with color
func PrintBanner() {
	printf(false, "%s", Cyan(Banner))
}

// PrintError prints an error message in red. It is shown in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		printf(true, "%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf(true, "%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(false, "%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf(false, "%s\n", Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf(false, "%s\n", Magenta(msg))
}
