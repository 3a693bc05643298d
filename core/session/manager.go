package session

import (
	"context"
	"sync"

	"github.com/trezcool/rollcall/core/user"
)

type State int

const (
	StateUnresolved State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

var stateNames = [...]string{"unresolved", "loading", "authenticated", "anonymous"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the observable state of a Manager. User is set when authenticated.
type Snapshot struct {
	State State      `json:"state"`
	User  *user.User `json:"user"`
}

// Manager owns the current user of one session.
// It goes from unresolved to loading when mounted, then to authenticated or anonymous
// on each authentication event, in the order events are handled.
// Once closed, results of resolutions still in flight are dropped.
type Manager struct {
	resolver *Resolver
	onChange func(Snapshot)

	mu      sync.Mutex
	mounted bool
	closed  bool
	current Snapshot
}

// NewManager returns an unresolved Manager. onChange, when not nil, is called with
// every new Snapshot, one call at a time.
func NewManager(resolver *Resolver, onChange func(Snapshot)) *Manager {
	return &Manager{resolver: resolver, onChange: onChange}
}

func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Mount moves an unresolved Manager to loading. It is a no-op afterwards.
func (m *Manager) Mount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mounted || m.closed {
		return
	}
	m.mounted = true
	m.setLocked(Snapshot{State: StateLoading})
}

// Handle resolves evt and publishes the outcome, unless the Manager was closed meanwhile.
// The resolution is not cancelled with ctx.
func (m *Manager) Handle(ctx context.Context, evt *Event) {
	usr := m.resolver.Resolve(context.WithoutCancel(ctx), evt)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if usr == nil {
		m.setLocked(Snapshot{State: StateAnonymous})
		return
	}
	m.setLocked(Snapshot{State: StateAuthenticated, User: usr})
}

// Run mounts the Manager and handles events until the channel is closed or ctx is done.
// The Manager is closed when ctx is done.
func (m *Manager) Run(ctx context.Context, events <-chan *Event) {
	m.Mount()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					m.Close()
				}
				return
			}
			m.Handle(ctx, evt)
		}
	}
}

// Close stops publishing snapshots. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) setLocked(s Snapshot) {
	m.current = s
	if m.onChange != nil {
		m.onChange(s)
	}
}
