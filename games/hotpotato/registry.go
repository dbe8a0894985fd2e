package hotpotato

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Conn is a live client connection as seen by the core. Send must not block.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Registry maps session tokens to live connections. It is shared by every
// session and only mutated by Register and Unregister.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns: make(map[string]Conn),
		log:   log,
	}
}

// Register assigns conn a fresh random token.
func (r *Registry) Register(conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id := uuid.NewString()
		if _, exists := r.conns[id]; exists {
			continue
		}
		r.conns[id] = conn
		return id
	}
}

// Unregister is a no-op for unknown ids.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Send delivers payload best-effort. Failures are logged and swallowed.
func (r *Registry) Send(id string, payload []byte) {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("SOCKET: Dropped message for departed player", zap.String("player", id))
		return
	}

	if err := conn.Send(payload); err != nil {
		r.log.Warn("SOCKET: Send failed", zap.String("player", id), zap.Error(err))
	}
}

// Kick closes the connection behind id, leaving the transport to unregister it.
func (r *Registry) Kick(id string) {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return
	}

	if err := conn.Close(); err != nil {
		r.log.Debug("SOCKET: Close failed", zap.String("player", id), zap.Error(err))
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close closes and forgets every connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	var err error
	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}
	return err
}
