package stack

import "github.com/pkg/errors"

var (
	// ErrUnderflow is returned when popping or peeking an empty stack.
	ErrUnderflow = errors.New("stack underflow")
	// ErrInvalidCapacity is returned for a negative capacity.
	ErrInvalidCapacity = errors.New("invalid stack capacity")
)

// Stack is the capability set of a bounded LIFO container.
type Stack[T any] interface {
	// Length returns the number of stored elements.
	Length() int
	// Capacity returns the remaining free space, not the fixed total.
	Capacity() int
	Push(v T) bool
	Pop() (T, error)
}

// Bounded is a fixed-capacity stack backed by a slice that never grows.
type Bounded[T any] struct {
	slots []T
	count int
}

var _ Stack[string] = (*Bounded[string])(nil)

// New creates a stack that holds at most capacity elements.
func New[T any](capacity int) (*Bounded[T], error) {
	if capacity < 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d", capacity)
	}
	return &Bounded[T]{slots: make([]T, capacity)}, nil
}

// NewStrings creates a bounded string stack.
func NewStrings(capacity int) (*Bounded[string], error) {
	return New[string](capacity)
}

func (s *Bounded[T]) Length() int {
	return s.count
}

// Capacity returns how many more elements can be pushed before the stack is
// full. Use Total for the size fixed at construction.
func (s *Bounded[T]) Capacity() int {
	return len(s.slots) - s.count
}

// Total returns the capacity the stack was created with.
func (s *Bounded[T]) Total() int {
	return len(s.slots)
}

// Push stores v on top of the stack. It reports false, leaving the stack
// untouched, when the stack is full.
func (s *Bounded[T]) Push(v T) bool {
	if s.count >= len(s.slots) {
		return false
	}
	s.slots[s.count] = v
	s.count++
	return true
}

// Pop removes and returns the most recently pushed element.
func (s *Bounded[T]) Pop() (T, error) {
	var zero T
	if s.count == 0 {
		return zero, ErrUnderflow
	}
	s.count--
	v := s.slots[s.count]
	s.slots[s.count] = zero // release the reference
	return v, nil
}

// Peek returns the top element without removing it.
func (s *Bounded[T]) Peek() (T, error) {
	if s.count == 0 {
		var zero T
		return zero, ErrUnderflow
	}
	return s.slots[s.count-1], nil
}

// Items returns a copy of the stored elements in push order.
func (s *Bounded[T]) Items() []T {
	result := make([]T, s.count)
	copy(result, s.slots[:s.count])
	return result
}
