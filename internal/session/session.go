// Package session holds the application's authentication state: who is
// operating the shop right now, and with which role. State is an explicit
// object injected into every consumer; it changes only through Transition.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"shopledger/internal/core"
	"shopledger/internal/store"
)

// LocalAdminFlag is the persistent flag that enables the device-local bypass.
const LocalAdminFlag = "local_admin"

type Role string

const (
	RoleNone     Role = ""
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

type Phase int

const (
	Anonymous Phase = iota
	Authenticated
	LocalAdmin
)

func (p Phase) String() string {
	switch p {
	case Authenticated:
		return "authenticated"
	case LocalAdmin:
		return "local_admin"
	}
	return "anonymous"
}

type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

type EventKind int

const (
	// FlagChecked is emitted once at startup with the local admin flag value.
	FlagChecked EventKind = iota
	SignedIn
	SignedOut
)

type Event struct {
	Kind      EventKind
	Operator  Operator
	FlagValue bool
}

// Snapshot is an immutable copy of the state at one instant.
type Snapshot struct {
	Phase    Phase    `json:"-"`
	Operator Operator `json:"operator"`
}

func (s Snapshot) Authenticated() bool { return s.Phase != Anonymous }

// CreatedBy is the identity stamped on new transactions. The local admin
// bypass has no remote identity and records nil.
func (s Snapshot) CreatedBy() *string {
	if s.Phase != Authenticated || s.Operator.ID == "" {
		return nil
	}
	id := s.Operator.ID
	return &id
}

// Source delivers remote session-change notifications.
type Source interface {
	Subscribe(fn func(Event)) (cancel func())
}

type State struct {
	mu        sync.RWMutex
	snap      Snapshot
	localFlag bool
	nextID    int
	listeners map[int]func(Snapshot)
}

func NewState() *State {
	return &State{listeners: map[int]func(Snapshot){}}
}

// Start checks the local admin flag and applies it as the first transition.
func Start(ctx context.Context, flags store.FlagStore) (*State, error) {
	s := NewState()
	on, err := flags.Flag(ctx, LocalAdminFlag)
	if err != nil {
		return nil, core.Remote(fmt.Sprintf("read flag %s", LocalAdminFlag), err)
	}
	s.Transition(Event{Kind: FlagChecked, FlagValue: on})
	return s, nil
}

// Transition is the only way the state changes. A set local admin flag
// wins over remote notifications until it is cleared.
func (s *State) Transition(ev Event) {
	s.mu.Lock()
	prev := s.snap
	switch ev.Kind {
	case FlagChecked:
		s.localFlag = ev.FlagValue
		if ev.FlagValue {
			s.snap = Snapshot{Phase: LocalAdmin, Operator: Operator{Name: "local admin", Role: RoleAdmin}}
		} else if s.snap.Phase == LocalAdmin {
			s.snap = Snapshot{}
		}
	case SignedIn:
		if !s.localFlag {
			op := ev.Operator
			if op.Role == RoleNone {
				op.Role = RoleOperator
			}
			s.snap = Snapshot{Phase: Authenticated, Operator: op}
		}
	case SignedOut:
		if !s.localFlag {
			s.snap = Snapshot{}
		}
	}
	next := s.snap
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if prev == next {
		return
	}
	slog.Info("Session state changed",
		"from", prev.Phase.String(),
		"to", next.Phase.String(),
		"operator", next.Operator.ID)
	for _, fn := range listeners {
		fn(next)
	}
}

func (s *State) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Attach forwards every event from src into Transition until the returned
// cancel function is called.
func (s *State) Attach(src Source) (cancel func()) {
	return src.Subscribe(s.Transition)
}

// OnChange registers fn to run after every effective transition.
func (s *State) OnChange(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Require returns the current snapshot or core.ErrUnauthenticated.
func (s *State) Require() (Snapshot, error) {
	snap := s.Current()
	if !snap.Authenticated() {
		return snap, core.ErrUnauthenticated
	}
	return snap, nil
}

// CreatedBy reports the identity to stamp on a new transaction right now.
func (s *State) CreatedBy() *string {
	return s.Current().CreatedBy()
}
