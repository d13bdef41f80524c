package session

import (
	"github.com/pkg/errors"

	"stringstack/internal/stack"
)

// DefaultSentinel ends the reading phase instead of being pushed.
const DefaultSentinel = "그만"

var (
	ErrInvalidState = errors.New("invalid session state")
	ErrTerminated   = errors.New("session terminated")
)

// DrainPolicy decides how many pops the draining phase attempts.
type DrainPolicy string

const (
	// DrainByCapacity pops the configured capacity, stopping at the first
	// underflow.
	DrainByCapacity DrainPolicy = "capacity"
	// DrainByLength pops only what is stored.
	DrainByLength DrainPolicy = "length"
)

func (p DrainPolicy) String() string {
	return string(p)
}

// UnmarshalText parses a policy name, so the policy can be read from flags and
// environment variables.
func (p *DrainPolicy) UnmarshalText(text []byte) error {
	switch v := DrainPolicy(text); v {
	case DrainByCapacity, DrainByLength:
		*p = v
		return nil
	case "":
		*p = DrainByCapacity
		return nil
	default:
		return errors.Errorf("unknown drain policy %q (want %q or %q)", v, DrainByCapacity, DrainByLength)
	}
}

// Options configures a session.
type Options struct {
	Sentinel string
	Drain    DrainPolicy
}

func (o Options) withDefaults() Options {
	if o.Sentinel == "" {
		o.Sentinel = DefaultSentinel
	}
	if o.Drain == "" {
		o.Drain = DrainByCapacity
	}
	return o
}

// Machine is the session state machine. It owns exactly one bounded stack,
// created when the capacity is configured. It is not safe for concurrent use.
type Machine struct {
	opts     Options
	state    State
	capacity int
	stack    *stack.Bounded[string]
}

// NewMachine creates a machine waiting for its capacity.
func NewMachine(opts Options) *Machine {
	return &Machine{
		opts:  opts.withDefaults(),
		state: StateAwaitingCapacity,
	}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Options() Options {
	return m.opts
}

// Capacity returns the configured total capacity.
func (m *Machine) Capacity() int {
	return m.capacity
}

// Length returns the number of values currently on the stack.
func (m *Machine) Length() int {
	if m.stack == nil {
		return 0
	}
	return m.stack.Length()
}

// Remaining returns the free space left on the stack.
func (m *Machine) Remaining() int {
	if m.stack == nil {
		return 0
	}
	return m.stack.Capacity()
}

// Items returns the stored values in push order.
func (m *Machine) Items() []string {
	if m.stack == nil {
		return nil
	}
	return m.stack.Items()
}

// Configure creates the stack and starts the reading phase.
func (m *Machine) Configure(capacity int) error {
	if err := m.expect(StateAwaitingCapacity); err != nil {
		return err
	}
	s, err := stack.NewStrings(capacity)
	if err != nil {
		return err
	}
	m.stack = s
	m.capacity = capacity
	m.state = StateReading
	return nil
}

// Submit handles one token read during the reading phase. The sentinel moves
// the machine to draining; any other token is pushed, and a full stack drops
// it with OutcomeOverflow.
func (m *Machine) Submit(token string) (Outcome, error) {
	if err := m.expect(StateReading); err != nil {
		return "", err
	}
	if token == m.opts.Sentinel {
		m.state = StateDraining
		return OutcomeSentinel, nil
	}
	if !m.stack.Push(token) {
		return OutcomeOverflow, nil
	}
	return OutcomePushed, nil
}

// Stop ends the reading phase as if the sentinel had been read.
func (m *Machine) Stop() error {
	if err := m.expect(StateReading); err != nil {
		return err
	}
	m.state = StateDraining
	return nil
}

// Drain pops the stack according to the drain policy and terminates the
// machine. Popped values are returned in LIFO order. Under DrainByCapacity a
// stack holding fewer values than its capacity stops at the first empty pop and
// the returned error wraps stack.ErrUnderflow; the values popped before it are
// still returned.
func (m *Machine) Drain() ([]string, error) {
	if err := m.expect(StateDraining); err != nil {
		return nil, err
	}
	defer func() { m.state = StateTerminated }()

	pops := m.capacity
	if m.opts.Drain == DrainByLength {
		pops = m.stack.Length()
	}

	values := make([]string, 0, m.stack.Length())
	for i := 0; i < pops; i++ {
		v, err := m.stack.Pop()
		if err != nil {
			return values, errors.Wrapf(err, "drain stopped after %d of %d pops", i, pops)
		}
		values = append(values, v)
	}
	return values, nil
}

// Terminate ends the session from any state without draining.
func (m *Machine) Terminate() {
	m.state = StateTerminated
}

func (m *Machine) expect(want State) error {
	if m.state == want {
		return nil
	}
	if m.state == StateTerminated {
		return ErrTerminated
	}
	return errors.Wrapf(ErrInvalidState, "state is %s, want %s", m.state, want)
}
