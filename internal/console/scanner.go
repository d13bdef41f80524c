// Package console provides the token sources that feed an interactive
// session: a plain word scanner for piped input and a readline-backed source
// for terminals.
package console

import (
	"bufio"
	"fmt"
	"io"
)

const maxTokenSize = 64 * 1024

// Scanner reads whitespace-delimited tokens from an io.Reader.
type Scanner struct {
	scanner *bufio.Scanner
	prompts io.Writer
}

// NewScanner creates a token source over r. Prompts are written to prompts
// before each read; a nil writer suppresses them.
func NewScanner(r io.Reader, prompts io.Writer) *Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxTokenSize)
	scanner.Split(bufio.ScanWords)
	return &Scanner{scanner: scanner, prompts: prompts}
}

// Next returns the next token, or io.EOF once the input is exhausted.
func (s *Scanner) Next(prompt string) (string, error) {
	if s.prompts != nil && prompt != "" {
		if _, err := fmt.Fprint(s.prompts, prompt); err != nil {
			return "", err
		}
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}
