package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/chazu/som/vm"
)

const historyFile = ".som_history"

// lineReader yields one line of shell input per call. io.EOF ends the
// session.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Remember(line string)
	Close() error
}

// ---------------------------------------------------------------------------
// Readers
// ---------------------------------------------------------------------------

// scanReader reads from a plain stream, for pipes and tests.
type scanReader struct {
	scanner *bufio.Scanner
}

// ReadLine ignores the prompt; piped input is not interactive.
func (r *scanReader) ReadLine(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Remember(string) {}
func (r *scanReader) Close() error    { return nil }

// linerReader edits lines on a terminal and keeps history across sessions.
type linerReader struct {
	state    *liner.State
	histPath string
}

func newLinerReader() *linerReader {
	r := &linerReader{state: liner.NewLiner()}
	r.state.SetCtrlCAborts(true)
	if home, err := os.UserHomeDir(); err == nil {
		r.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(r.histPath); err == nil {
			_, _ = r.state.ReadHistory(f)
			_ = f.Close()
		}
	}
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (r *linerReader) Remember(line string) { r.state.AppendHistory(line) }

func (r *linerReader) Close() error {
	if r.histPath != "" {
		if f, err := os.Create(r.histPath); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return r.state.Close()
}

func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && isatty.IsTerminal(f.Fd()) {
		return newLinerReader()
	}
	return &scanReader{scanner: bufio.NewScanner(in)}
}

// ---------------------------------------------------------------------------
// Shell
// ---------------------------------------------------------------------------

// runShell reads statements one line at a time and prints the printString
// of each result. The variable it holds the previous result.
func runShell(u *vm.Universe, in io.Reader, out io.Writer) error {
	if _, err := u.InitializeObjectSystem(); err != nil {
		return err
	}
	r := newLineReader(in)
	defer r.Close()
	return shellLoop(u, r, out)
}

func shellLoop(u *vm.Universe, r lineReader, out io.Writer) error {
	fmt.Fprintln(out, "SOM Shell. Type \"quit\" to exit.")

	var it vm.Value = u.Nil
	counter := 0
	for {
		counter++
		line, err := r.ReadLine(fmt.Sprintf("---> %d ", counter))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			counter--
			continue
		case "quit", "exit", ":quit":
			return nil
		}
		r.Remember(line)

		result, err := u.Eval(line, it)
		var exit *vm.ExitError
		if errors.As(err, &exit) {
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		it = result
		text, err := u.PrintString(result)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "it = %s\n", text)
	}
}
