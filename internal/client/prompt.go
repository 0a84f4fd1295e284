package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads secrets from a terminal without echo. When In is not a
// terminal (a pipe in scripts and tests) it reads plain lines instead.
type Prompter struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

// NewPrompter prompts on stderr and reads from stdin.
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// Secret prints label and reads one secret.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprint(p.Out, label)

	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(b), nil
	}

	if p.lines == nil {
		p.lines = bufio.NewReader(p.In)
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
