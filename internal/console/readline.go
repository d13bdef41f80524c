package console

import (
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// lineReader is the part of *readline.Instance the source needs.
type lineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
	Close() error
}

// Readline reads tokens from a terminal with line editing and history. A line
// may hold several tokens; they are handed out one at a time before the next
// line is read.
type Readline struct {
	rl      lineReader
	pending []string
}

// NewReadline opens a readline instance on the process terminal. An empty
// historyFile disables persistent history.
func NewReadline(historyFile string) (*Readline, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     historyFile,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Readline{rl: rl}, nil
}

// IsTerminal reports whether stdin is attached to a terminal.
func IsTerminal() bool {
	return readline.IsTerminal(int(os.Stdin.Fd()))
}

// Next returns the next token. Ctrl+C and Ctrl+D both end the input with
// io.EOF.
func (r *Readline) Next(prompt string) (string, error) {
	for len(r.pending) == 0 {
		r.rl.SetPrompt(prompt)
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", io.EOF
			}
			return "", err
		}
		r.pending = strings.Fields(line)
	}

	token := r.pending[0]
	r.pending = r.pending[1:]
	return token, nil
}

func (r *Readline) Close() error {
	return r.rl.Close()
}
