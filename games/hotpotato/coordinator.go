package hotpotato

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Summary is what the Manager can see of a session without asking its
// Coordinator. It is republished after every event.
type Summary struct {
	ID         string
	Phase      Phase
	Members    []string
	Max        int
	LastActive time.Time
}

type viewRequest struct {
	reply chan View
}

func (viewRequest) isEvent() {}

// Coordinator is the single goroutine that owns a Session. Events, timer
// ticks and state requests are handled strictly one at a time, in arrival
// order, and every accepted change is broadcast before the next is read.
type Coordinator struct {
	id       string
	session  *Session
	registry *Registry
	log      *zap.Logger
	now      func() time.Time

	inbox  chan Event
	done   chan struct{}
	cancel context.CancelFunc
	sched  scheduler

	summary atomic.Pointer[Summary]
}

func newCoordinator(parent context.Context, id string, registry *Registry, opts Options) *Coordinator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)

	c := &Coordinator{
		id:       id,
		session:  newSession(id, opts),
		registry: registry,
		log:      opts.Logger.With(zap.String("session", id)),
		now:      opts.Now,
		inbox:    make(chan Event, 64),
		done:     make(chan struct{}),
		cancel:   cancel,
		sched:    scheduler{tick: opts.Tick},
	}
	c.publish()

	go c.run(ctx)
	return c
}

func (c *Coordinator) ID() string { return c.id }

// Submit queues ev. It reports false once the coordinator has stopped.
func (c *Coordinator) Submit(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.inbox <- ev:
		return true
	case <-c.done:
		return false
	}
}

// View waits for a consistent copy of the session state.
func (c *Coordinator) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)

	select {
	case c.inbox <- viewRequest{reply: reply}:
	case <-c.done:
		return View{}, ErrSessionClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		return View{}, ErrSessionClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (c *Coordinator) Summary() Summary {
	return *c.summary.Load()
}

// Stop ends the coordinator and waits for it to exit.
func (c *Coordinator) Stop() {
	c.cancel()
	<-c.done
}

func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	defer c.sched.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-c.inbox:
			if req, ok := ev.(viewRequest); ok {
				req.reply <- c.session.view()
				continue
			}
			c.apply(ev)

		case <-c.sched.C():
			c.apply(Tick{})
		}
	}
}

func (c *Coordinator) apply(ev Event) {
	out := c.session.dispatch(ev, c.now())

	// Restart or stop the timer before anything is sent, so a new holder
	// never inherits the previous holder's tick phase.
	c.sched.sync(c.session.lobby.Phase == PhaseActive, c.session.game.tenure)

	deliver(c.registry, c.log, out)
	c.publish()
}

func (c *Coordinator) publish() {
	s := c.session
	c.summary.Store(&Summary{
		ID:         c.id,
		Phase:      s.lobby.Phase,
		Members:    slices.Clone(s.lobby.Members),
		Max:        s.lobby.Max,
		LastActive: s.lastActive,
	})
}
