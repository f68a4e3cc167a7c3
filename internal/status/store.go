package status

import (
	"fmt"
	"sync"

	"appframe/internal/events"
	"appframe/internal/logging"
)

// Status is the application's session phase.
type Status string

const (
	// LoggedOut means the app is installed but nobody logged in yet.
	LoggedOut Status = "loggedout"
	// LoggedIn means a user logged in but has not activated.
	LoggedIn Status = "loggedin"
	// Activated means the user can use every feature.
	Activated Status = "activated"
)

// EventName is the name of the event broadcast on every change.
const EventName = "status"

// Valid reports whether s is one of the documented values.
func (s Status) Valid() bool {
	switch s {
	case LoggedOut, LoggedIn, Activated:
		return true
	default:
		return false
	}
}

// Parse converts a string into a documented Status.
func Parse(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q (want loggedout, loggedin or activated)", value)
	}
	return s, nil
}

// Change is the payload of a status event. Old is empty when no status was
// known in memory before the change.
type Change struct {
	Old Status
	New Status
}

// Properties persists string values.
type Properties interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
}

// Broadcaster delivers named events to listeners synchronously.
type Broadcaster interface {
	Trigger(name string, payload any)
}

// Store keeps the current status.
type Store struct {
	key    string
	props  Properties
	bus    Broadcaster
	logger *logging.Logger

	mu      sync.Mutex
	current Status
}

// NewStore builds a store persisting under "<appID>.status".
func NewStore(appID string, props Properties, bus Broadcaster, logger *logging.Logger) *Store {
	if props == nil {
		panic("status.NewStore: props is nil")
	}
	if bus == nil {
		panic("status.NewStore: bus is nil")
	}
	return &Store{
		key:    Key(appID),
		props:  props,
		bus:    bus,
		logger: logger,
	}
}

// Key returns the persistence key for appID.
func Key(appID string) string {
	return appID + ".status"
}

// Key returns the persistence key used by the store.
func (s *Store) Key() string {
	return s.key
}

// SetStatus persists next, makes it current and broadcasts the change.
// When persisting fails nothing changes and the error is returned.
func (s *Store) SetStatus(next Status) error {
	s.mu.Lock()
	old := s.current
	if err := s.props.SetString(s.key, string(next)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist status: %w", err)
	}
	s.current = next
	s.mu.Unlock()

	s.logger.Debugf("status %q -> %q", old, next)

	// Lets the app route based on the new status
	s.bus.Trigger(EventName, Change{Old: old, New: next})
	return nil
}

// GetStatus returns the current status, loading the persisted value on first
// use and falling back to LoggedOut.
func (s *Store) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" {
		return s.current
	}

	value, ok, err := s.props.GetString(s.key)
	switch {
	case err != nil:
		s.logger.Warnf("read persisted status: %v", err)
		s.current = LoggedOut
	case !ok || value == "":
		s.current = LoggedOut
	default:
		s.current = Status(value)
	}
	return s.current
}

// OnChange subscribes fn to status changes. It requires the broadcaster to be
// an *events.Emitter and returns nil otherwise.
func (s *Store) OnChange(fn func(Change)) *events.Subscription {
	emitter, ok := s.bus.(*events.Emitter)
	if !ok {
		return nil
	}
	return emitter.On(EventName, func(evt events.Event) {
		if change, ok := evt.Payload.(Change); ok {
			fn(change)
		}
	})
}
