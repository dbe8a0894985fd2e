package hotpotato

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		MaxHold:         time.Minute,
		Tick:            time.Second,
		WarnBefore:      []time.Duration{10 * time.Second},
		MaxPlayers:      4,
		ReturnToThrower: true,
		NewRand:         func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) },
	}
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	opts.Now = func() time.Time { return t0 }
	return newSession("TESTGAME", opts)
}

// startGame joins the named players and has the first one start the game.
func startGame(t *testing.T, s *Session, ids ...string) []Outbound {
	t.Helper()
	var out []Outbound
	for _, id := range ids {
		out = append(out, s.dispatch(Join{PlayerID: id, Name: "name-" + id}, t0)...)
	}
	out = append(out, s.dispatch(SetRequiredPlayers{PlayerID: ids[0], Count: len(ids)}, t0)...)
	require.Equal(t, PhaseActive, s.lobby.Phase)
	return out
}

func messages[T any](outs []Outbound) []T {
	var found []T
	for _, o := range outs {
		if m, ok := o.Msg.(T); ok {
			found = append(found, m)
		}
	}
	return found
}

func recipients[T any](outs []Outbound) [][]string {
	var found [][]string
	for _, o := range outs {
		if _, ok := o.Msg.(T); ok {
			found = append(found, o.To)
		}
	}
	return found
}

func other(ids []string, not string) string {
	for _, id := range ids {
		if id != not {
			return id
		}
	}
	return ""
}

// fakeConn records every payload it is sent.
type fakeConn struct {
	mu       sync.Mutex
	payloads chan []byte
	closed   bool
	sendErr  error
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{payloads: make(chan []byte, 256)}
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return errors.New("closed")
	}
	c.payloads <- payload
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// waitFor reads payloads until one has the given type.
func waitFor(t *testing.T, c *fakeConn, msgType string, within time.Duration) map[string]any {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case payload := <-c.payloads:
			var msg map[string]any
			require.NoError(t, json.Unmarshal(payload, &msg))
			if msg["type"] == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return nil
		}
	}
}
