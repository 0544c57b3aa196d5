package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// prompter asks questions on a line-oriented terminal
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	tty *os.File
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = f
	}
	return p
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ask returns the answer, or def when the answer is empty
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// askRequired repeats the question until the answer is non-empty
func (p *prompter) askRequired(label, def string) (string, error) {
	for {
		answer, err := p.ask(label, def)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(p.out, "A value is required.")
	}
}

// askSecret reads without echo on a terminal. An empty answer keeps def.
func (p *prompter) askSecret(label string, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [keep current]: ", label)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	var answer string
	if p.tty != nil {
		b, err := term.ReadPassword(int(p.tty.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(string(b))
	} else {
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		answer = line
	}

	if answer == "" {
		if def == "" {
			return p.askSecret(label, def)
		}
		return def, nil
	}
	return answer, nil
}

// askUint repeats the question until a positive integer is given
func (p *prompter) askUint(label string, def uint64) (uint64, error) {
	d := ""
	if def != 0 {
		d = strconv.FormatUint(def, 10)
	}
	for {
		answer, err := p.ask(label, d)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(answer, 10, 64)
		if err == nil && v > 0 {
			return v, nil
		}
		fmt.Fprintln(p.out, "Please enter a positive whole number.")
	}
}

// askFloat repeats the question until a number within [min, max] is given
func (p *prompter) askFloat(label string, def, min, max float64) (float64, error) {
	d := strconv.FormatFloat(def, 'f', -1, 64)
	for {
		answer, err := p.ask(label, d)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(answer, 64)
		if err == nil && v >= min && v <= max {
			return v, nil
		}
		fmt.Fprintf(p.out, "Please enter a number between %g and %g.\n", min, max)
	}
}

// confirm asks a yes/no question
func (p *prompter) confirm(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s (%s): ", label, hint)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
