// Package status tracks whether the remote API is reachable, derived from the
// outcomes the repository publishes on the bus.
package status

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/phonecontact/internal/bus"
	intsync "github.com/matheus3301/phonecontact/internal/sync"
	"go.uber.org/zap"
)

// State represents the daemon's connectivity state.
type State string

const (
	Booting State = "BOOTING"
	Ready   State = "READY"
	Syncing State = "SYNCING"
	Offline State = "OFFLINE"
	Error   State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting: {Ready, Syncing, Offline, Error},
	Ready:   {Syncing, Offline, Error},
	Syncing: {Ready, Offline, Error},
	Offline: {Ready, Syncing, Error},
	Error:   {Booting},
}

// Snapshot is a point-in-time view of the machine.
type Snapshot struct {
	State     State
	Since     time.Time
	LastError string
}

// Machine tracks and enforces connectivity state transitions.
type Machine struct {
	mu        sync.RWMutex
	current   State
	since     time.Time
	lastError string

	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
		logger:  logger,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Snapshot returns the current state with its details.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.current, Since: m.since, LastError: m.lastError}
}

// Transition attempts to move to a new state. Moving to the current state is
// a no-op. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

func (m *Machine) transitionLocked(to State) error {
	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	m.bus.Publish(bus.NewEvent(bus.KindStatusChanged, StatusChange{From: from, To: to}))
	m.logger.Info("status changed", zap.String("from", string(from)), zap.String("to", string(to)))
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

// Start follows remote and sync outcomes on the bus until Stop is called.
func (m *Machine) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	// One subscription keeps sync and remote events in publish order.
	ch, unsub := m.bus.Subscribe("", 256)

	go func() {
		defer close(m.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				m.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops following the bus.
func (m *Machine) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

func (m *Machine) handleEvent(evt bus.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	switch evt.Kind {
	case bus.KindSyncStarted:
		err = m.transitionLocked(Syncing)
	case bus.KindSyncCompleted:
		m.lastError = ""
		err = m.transitionLocked(Ready)
	case bus.KindSyncFailed:
		if out, ok := evt.Payload.(intsync.SyncOutcome); ok && out.Err != nil {
			m.lastError = out.Err.Error()
		}
		err = m.transitionLocked(Offline)
	case bus.KindRemoteSucceeded:
		if m.current != Syncing {
			m.lastError = ""
			err = m.transitionLocked(Ready)
		}
	case bus.KindRemoteFailed:
		if out, ok := evt.Payload.(intsync.RemoteOutcome); ok && out.Err != nil {
			m.lastError = out.Err.Error()
		}
		if m.current != Syncing {
			err = m.transitionLocked(Offline)
		}
	default:
		return
	}
	if err != nil {
		m.logger.Debug("ignored status event", zap.String("kind", evt.Kind), zap.Error(err))
	}
}
