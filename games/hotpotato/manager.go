package hotpotato

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager holds a Coordinator per session id, so each game is its own
// isolated session. It owns session lifecycle: create, lookup, destroy.
type Manager struct {
	ctx         context.Context
	registry    *Registry
	opts        Options
	idleTimeout time.Duration
	log         *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Coordinator
}

func NewManager(ctx context.Context, registry *Registry, opts Options, idleTimeout time.Duration) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		ctx:         ctx,
		registry:    registry,
		opts:        opts,
		idleTimeout: idleTimeout,
		log:         opts.Logger,
		sessions:    make(map[string]*Coordinator),
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

// NewID generates a crypto-random session id that does not collide with a
// live session.
func (m *Manager) NewID() string {
	for {
		buf := make([]byte, SessionIDLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, SessionIDLength)
		for i := range out {
			out[i] = SessionIDChars[int(buf[i])%len(SessionIDChars)]
		}
		id := string(out)

		m.mu.Lock()
		_, exists := m.sessions[id]
		m.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// Create starts a session under a fresh id.
func (m *Manager) Create() *Coordinator {
	return m.Ensure(m.NewID())
}

// Ensure returns the session for id, starting it if needed.
func (m *Manager) Ensure(id string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[id]; ok {
		return c
	}

	c := newCoordinator(m.ctx, id, m.registry, m.opts)
	m.sessions[id] = c
	m.log.Debug("GAMES: Created session", zap.String("session", id))
	return c
}

func (m *Manager) Lookup(id string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[id]
	return c, ok
}

// Destroy stops the session and disconnects anyone still in it.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}

	members := c.Summary().Members
	c.Stop()
	for _, player := range members {
		m.registry.Kick(player)
	}
	m.log.Debug("GAMES: Destroyed session", zap.String("session", id))
}

func (m *Manager) forget(id string, c *Coordinator) {
	m.mu.Lock()
	if m.sessions[id] == c {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
}

// Dispatch delivers ev to the session, starting it if needed. A session that
// stopped in the meantime is replaced.
func (m *Manager) Dispatch(id string, ev Event) bool {
	for range 3 {
		c := m.Ensure(id)
		if c.Submit(ev) {
			return true
		}
		m.forget(id, c)
	}
	return false
}

// Notify delivers ev only to a session that already exists.
func (m *Manager) Notify(id string, ev Event) bool {
	c, ok := m.Lookup(id)
	if !ok {
		return false
	}
	return c.Submit(ev)
}

// QuickPlay picks the fullest forming session with room to spare, or a new one.
func (m *Manager) QuickPlay() string {
	m.mu.Lock()
	best := ""
	bestSize := -1
	for id, c := range m.sessions {
		s := c.Summary()
		if s.Phase != PhaseForming || len(s.Members) >= s.Max {
			continue
		}
		if len(s.Members) > bestSize || (len(s.Members) == bestSize && id < best) {
			best, bestSize = id, len(s.Members)
		}
	}
	m.mu.Unlock()

	if best != "" {
		return best
	}
	return m.Create().ID()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap destroys sessions idle since before now-idleTimeout and returns how
// many it removed.
func (m *Manager) Reap(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTimeout)

	var stale []string
	m.mu.Lock()
	for id, c := range m.sessions {
		if c.Summary().LastActive.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.Destroy(id)
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.idleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Reap(m.opts.Now()); n > 0 {
				m.log.Info("GAMES: Reaped idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Close stops every session and closes every connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Coordinator)
	m.mu.Unlock()

	for _, c := range sessions {
		c.Stop()
	}
	return m.registry.Close()
}
