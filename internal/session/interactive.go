package session

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stringstack/internal/console"
	"stringstack/internal/logger"
	"stringstack/internal/stack"
)

// Console protocol text.
const (
	PromptCapacity = "총 스택 저장 공간의 크기 입력 >> "
	PromptToken    = "문자열 입력 >> "
	OverflowNotice = "스택이 꽉 차서 푸시 불가!"
	DrainHeader    = "스택에 저장된 모든 문자열 팝 : "
)

// TokenSource yields whitespace-delimited tokens. Next returns io.EOF when the
// input is exhausted.
type TokenSource interface {
	Next(prompt string) (string, error)
}

// Summary reports what an interactive run did.
type Summary struct {
	Capacity  int
	Pushed    int
	Overflows int
	Values    []string
	Underflow bool
}

// Interactive drives a Machine from a token source and reports to an output
// sink: it reads a capacity, pushes tokens until the sentinel, then drains and
// prints the stack.
type Interactive struct {
	src     TokenSource
	out     io.Writer
	machine *Machine
	log     *zap.SugaredLogger
}

func NewInteractive(src TokenSource, out io.Writer, opts Options) *Interactive {
	return &Interactive{
		src:     src,
		out:     out,
		machine: NewMachine(opts),
		log:     logger.Named("session"),
	}
}

// Machine exposes the underlying state machine.
func (s *Interactive) Machine() *Machine {
	return s.machine
}

// Run reads the capacity from the token source and runs the session to
// termination.
func (s *Interactive) Run() (Summary, error) {
	tok, err := s.src.Next(PromptCapacity)
	if err != nil {
		return Summary{}, errors.Wrap(err, "read capacity")
	}
	capacity, err := strconv.Atoi(tok)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "parse capacity %q", tok)
	}
	return s.RunWithCapacity(capacity)
}

// RunWithCapacity runs the session with a capacity supplied up front, skipping
// the capacity prompt.
func (s *Interactive) RunWithCapacity(capacity int) (Summary, error) {
	if err := s.machine.Configure(capacity); err != nil {
		return Summary{}, err
	}
	sum := Summary{Capacity: capacity}
	s.log.Debugw("session started", "capacity", capacity, "sentinel", s.machine.opts.Sentinel)

	if err := s.read(&sum); err != nil {
		return sum, err
	}
	return sum, s.drain(&sum)
}

func (s *Interactive) read(sum *Summary) error {
	for {
		tok, err := s.src.Next(PromptToken)
		if errors.Is(err, io.EOF) {
			// End of input stops reading like the sentinel does.
			s.log.Debugw("input ended before sentinel")
			return s.machine.Stop()
		}
		if err != nil {
			return errors.Wrap(err, "read token")
		}

		outcome, err := s.machine.Submit(tok)
		if err != nil {
			return err
		}
		switch outcome {
		case OutcomeSentinel:
			return nil
		case OutcomeOverflow:
			sum.Overflows++
			s.log.Debugw("push rejected", "value", tok, "length", s.machine.Length())
			if _, err := fmt.Fprintln(s.out, OverflowNotice); err != nil {
				return err
			}
		case OutcomePushed:
			sum.Pushed++
		}
	}
}

func (s *Interactive) drain(sum *Summary) error {
	values, drainErr := s.machine.Drain()
	if drainErr != nil && !errors.Is(drainErr, stack.ErrUnderflow) {
		return drainErr
	}
	sum.Values = values

	if _, err := fmt.Fprint(s.out, DrainHeader); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprint(s.out, v+" "); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(s.out); err != nil {
		return err
	}

	if drainErr != nil {
		sum.Underflow = true
		s.log.Warnw("drain hit an empty stack", "capacity", sum.Capacity, "popped", len(values), "error", drainErr)
	}
	return nil
}

// RunScript runs a whole session over r without prompts, writing the console
// output to out.
func RunScript(r io.Reader, out io.Writer, opts Options) (Summary, error) {
	return NewInteractive(console.NewScanner(r, nil), out, opts).Run()
}
