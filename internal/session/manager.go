package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stringstack/internal/logger"
	"stringstack/internal/stack"
)

const (
	defaultHistorySize      = 256
	defaultSubscriberBufCap = 100
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMaxSessions     = errors.New("maximum session limit reached")
)

// Manager owns the lifecycle of remotely driven stack sessions.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*managedSession
	maxSessions int
	historySize int
	opts        Options
	log         *zap.SugaredLogger
}

type managedSession struct {
	mu          sync.Mutex // guards session and machine
	session     Session
	machine     *Machine
	ringBuf     *RingBuffer
	subscribers map[string]chan Event
	subMu       sync.RWMutex
}

// NewManager creates a session manager. A non-positive historySize uses the
// default event history length.
func NewManager(maxSessions, historySize int, opts Options) *Manager {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Manager{
		sessions:    make(map[string]*managedSession),
		maxSessions: maxSessions,
		historySize: historySize,
		opts:        opts.withDefaults(),
		log:         logger.Named("manager"),
	}
}

// Sentinel returns the token that ends a session's reading phase.
func (m *Manager) Sentinel() string {
	return m.opts.Sentinel
}

// Create starts a new session whose stack holds capacity values.
func (m *Manager) Create(capacity int, label string) (*Session, error) {
	machine := NewMachine(m.opts)
	if err := machine.Configure(capacity); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	activeCount := 0
	for _, ms := range m.sessions {
		ms.mu.Lock()
		if ms.session.State != StateTerminated {
			activeCount++
		}
		ms.mu.Unlock()
	}
	if activeCount >= m.maxSessions {
		return nil, errors.Wrapf(ErrMaxSessions, "limit %d", m.maxSessions)
	}

	ms := &managedSession{
		session: Session{
			ID:        uuid.New().String(),
			Label:     label,
			CreatedAt: time.Now().UTC(),
		},
		machine:     machine,
		ringBuf:     NewRingBuffer(m.historySize),
		subscribers: make(map[string]chan Event),
	}
	ms.refresh()
	m.sessions[ms.session.ID] = ms

	m.log.Infow("session created", "id", ms.session.ID, "capacity", capacity, "label", label)
	sess := ms.session
	return &sess, nil
}

// refresh copies the machine's state into the session snapshot. Callers hold
// ms.mu or own ms exclusively.
func (ms *managedSession) refresh() {
	ms.session.State = ms.machine.State()
	ms.session.Capacity = ms.machine.Capacity()
	ms.session.Length = ms.machine.Length()
	ms.session.Remaining = ms.machine.Remaining()
}

func (m *Manager) lookup(id string) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "id %s", id)
	}
	return ms, nil
}

// Get returns a snapshot of a session.
func (m *Manager) Get(id string) (*Session, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	sess := ms.session
	return &sess, nil
}

// Items returns the values currently stored in a session's stack, in push
// order.
func (m *Manager) Items(id string) ([]string, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.machine.Items(), nil
}

// List returns snapshots of all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	result := make([]*Session, 0, len(m.sessions))
	for _, ms := range m.sessions {
		ms.mu.Lock()
		sess := ms.session
		ms.mu.Unlock()
		result = append(result, &sess)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Push submits one token to a session. The sentinel token stops the session
// and drains it; a full stack rejects the token with OutcomeOverflow.
func (m *Manager) Push(id, value string) (*Result, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	outcome, err := ms.machine.Submit(value)
	if err != nil {
		ms.mu.Unlock()
		return nil, err
	}

	res := &Result{Outcome: outcome}
	var events []Event
	switch outcome {
	case OutcomePushed:
		events = append(events, ms.newEvent(EventPushed, value, nil))
	case OutcomeOverflow:
		events = append(events, ms.newEvent(EventOverflow, value, nil))
	case OutcomeSentinel:
		drained, err := ms.drainLocked(res)
		if err != nil {
			ms.mu.Unlock()
			return nil, err
		}
		events = drained
	}
	ms.refresh()
	res.Session = ms.session
	ms.mu.Unlock()

	for _, e := range events {
		m.publish(ms, e)
	}
	return res, nil
}

// Stop ends a session's reading phase as the sentinel would and drains it.
func (m *Manager) Stop(id string) (*Result, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	if err := ms.machine.Stop(); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	res := &Result{Outcome: OutcomeSentinel}
	events, err := ms.drainLocked(res)
	if err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	ms.refresh()
	res.Session = ms.session
	ms.mu.Unlock()

	for _, e := range events {
		m.publish(ms, e)
	}
	return res, nil
}

// drainLocked drains the machine and builds the events describing it. An
// underflow is recorded on res rather than returned.
func (ms *managedSession) drainLocked(res *Result) ([]Event, error) {
	values, err := ms.machine.Drain()
	if err != nil && !errors.Is(err, stack.ErrUnderflow) {
		return nil, err
	}

	events := make([]Event, 0, len(values)+2)
	for _, v := range values {
		events = append(events, ms.newEvent(EventPopped, v, nil))
	}
	if err != nil {
		res.Underflow = true
		events = append(events, ms.newEvent(EventUnderflow, err.Error(), nil))
	}
	events = append(events, ms.newEvent(EventTerminated, "", values))
	res.Drained = values
	return events, nil
}

func (ms *managedSession) newEvent(typ EventType, data string, values []string) Event {
	return Event{
		SessionID: ms.session.ID,
		Type:      typ,
		Data:      data,
		Values:    values,
		Timestamp: time.Now().UTC(),
	}
}

// publish records an event in the session history and sends it to all
// subscribers.
func (m *Manager) publish(ms *managedSession, event Event) {
	ms.subMu.RLock()
	defer ms.subMu.RUnlock()

	ms.ringBuf.Write(event)

	for _, ch := range ms.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber channel full, drop the event.
		}
	}
}

// Kill terminates a session without draining it.
func (m *Manager) Kill(id string) error {
	ms, err := m.lookup(id)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	if ms.session.State == StateTerminated {
		ms.mu.Unlock()
		return nil // Already terminated.
	}
	ms.machine.Terminate()
	ms.refresh()
	event := ms.newEvent(EventTerminated, "killed", nil)
	ms.mu.Unlock()

	m.log.Infow("session killed", "id", id)
	m.publish(ms, event)
	return nil
}

// Subscribe creates a channel that receives events for a session.
// Returns the subscription ID, the channel, and the buffered history.
func (m *Manager) Subscribe(id string) (string, <-chan Event, []Event, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return "", nil, nil, err
	}

	subID := uuid.New().String()
	ch := make(chan Event, defaultSubscriberBufCap)

	ms.subMu.Lock()
	// Read history under subMu so no event is both replayed and delivered.
	history := ms.ringBuf.ReadAll()
	ms.subscribers[subID] = ch
	ms.subMu.Unlock()

	return subID, ch, history, nil
}

// Unsubscribe removes a subscriber from a session and closes its channel.
func (m *Manager) Unsubscribe(sessionID, subID string) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return
	}

	ms.subMu.Lock()
	if ch, exists := ms.subscribers[subID]; exists {
		close(ch)
		delete(ms.subscribers, subID)
	}
	ms.subMu.Unlock()
}

// Shutdown terminates every active session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Kill(id)
	}
}
