package hotpotato

import (
	"math/rand/v2"
	"slices"
	"time"
)

type PotatoState string

const (
	PotatoIdle     PotatoState = "idle"
	PotatoHeld     PotatoState = "held"
	PotatoInFlight PotatoState = "inFlight"
)

// Potato is only ever mutated by game. While a game is active it is either
// held by exactly one live player or in flight, never both.
type Potato struct {
	HolderID  string
	InFlight  bool
	HeldSince time.Time
	MaxHold   time.Duration

	Launcher    string
	Target      string
	LaunchedAt  time.Time
	LastThrower string
}

func (p Potato) State() PotatoState {
	switch {
	case p.InFlight:
		return PotatoInFlight
	case p.HolderID != "":
		return PotatoHeld
	default:
		return PotatoIdle
	}
}

// Elimination records are appended in order and only cleared on reset.
type Elimination struct {
	PlayerID      string
	Order         int
	TotalHoldTime time.Duration
}

type throwResult struct {
	From     string
	To       string
	InFlight bool
}

type removal struct {
	WasLive   bool
	NewHolder string
	NewTarget string
}

type game struct {
	potato       Potato
	live         []string
	eliminations []Elimination
	held         map[string]time.Duration

	// tenure changes whenever the holder does, so the hold timer can tell
	// one holder's stint from the next.
	tenure uint64

	flightTime      time.Duration
	returnToThrower bool
	rng             *rand.Rand
}

func newGame(maxHold, flightTime time.Duration, returnToThrower bool, rng *rand.Rand) game {
	return game{
		potato:          Potato{MaxHold: maxHold},
		held:            make(map[string]time.Duration),
		flightTime:      flightTime,
		returnToThrower: returnToThrower,
		rng:             rng,
	}
}

func (g *game) isLive(id string) bool {
	return slices.Contains(g.live, id)
}

// pick returns a uniformly random live player not in exclude.
func (g *game) pick(exclude ...string) (string, bool) {
	candidates := make([]string, 0, len(g.live))
	for _, id := range g.live {
		if !slices.Contains(exclude, id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[g.rng.IntN(len(candidates))], true
}

// release closes out the current holder's tenure without naming a new one.
func (g *game) release(now time.Time) {
	if g.potato.HolderID != "" {
		g.held[g.potato.HolderID] += now.Sub(g.potato.HeldSince)
	}
	g.potato.HolderID = ""
	g.potato.HeldSince = time.Time{}
}

func (g *game) hand(id string, now time.Time) {
	g.release(now)
	g.potato.HolderID = id
	g.potato.HeldSince = now
	g.potato.InFlight = false
	g.potato.Launcher = ""
	g.potato.Target = ""
	g.potato.LaunchedAt = time.Time{}
	g.tenure++
}

// start is the only way into active play: IDLE -> HELD(random member).
func (g *game) start(members []string, now time.Time) string {
	g.live = slices.Clone(members)
	g.eliminations = nil
	clear(g.held)
	g.potato = Potato{MaxHold: g.potato.MaxHold}

	holder, _ := g.pick()
	g.hand(holder, now)
	return holder
}

func (g *game) throw(actor string, now time.Time) (throwResult, error) {
	if g.potato.InFlight || actor == "" || g.potato.HolderID != actor {
		return throwResult{}, ErrNotHolder
	}

	target, ok := g.pick(actor)
	if !ok {
		return throwResult{}, ErrNoRecipient
	}
	g.potato.LastThrower = actor

	if g.flightTime <= 0 {
		g.hand(target, now)
		return throwResult{From: actor, To: target}, nil
	}

	g.release(now)
	g.potato.InFlight = true
	g.potato.Launcher = actor
	g.potato.Target = target
	g.potato.LaunchedAt = now
	g.tenure++
	return throwResult{From: actor, To: target, InFlight: true}, nil
}

// land completes a throw once the flight time has passed.
func (g *game) land(now time.Time) (from, to string, ok bool) {
	if !g.potato.InFlight || now.Sub(g.potato.LaunchedAt) < g.flightTime {
		return "", "", false
	}
	from, to = g.potato.Launcher, g.potato.Target
	g.hand(to, now)
	return from, to, true
}

// eliminate takes the holder out of rotation and hands the potato on: to the
// last thrower when configured and still live, otherwise to a random live
// player. With a single survivor left, the survivor is handed the potato and
// the caller is expected to declare them the winner.
func (g *game) eliminate(now time.Time) (Elimination, string, bool) {
	victim := g.potato.HolderID
	if victim == "" || g.potato.InFlight {
		return Elimination{}, "", false
	}

	g.release(now)
	g.live = slices.DeleteFunc(g.live, func(id string) bool { return id == victim })

	rec := Elimination{
		PlayerID:      victim,
		Order:         len(g.eliminations) + 1,
		TotalHoldTime: g.held[victim],
	}
	g.eliminations = append(g.eliminations, rec)

	if len(g.live) == 0 {
		return rec, "", true
	}

	next := ""
	if g.returnToThrower && g.potato.LastThrower != victim && g.isLive(g.potato.LastThrower) {
		next = g.potato.LastThrower
	} else {
		next, _ = g.pick()
	}
	g.hand(next, now)
	return rec, next, true
}

// remove drops a departed player from rotation. A departing holder's potato
// goes to a random live player; a departing target gets replaced by another
// player the launcher did not throw from. With one player left any flight is
// void and the survivor holds the potato.
func (g *game) remove(id string, now time.Time) removal {
	if !g.isLive(id) {
		return removal{}
	}
	r := removal{WasLive: true}
	g.live = slices.DeleteFunc(g.live, func(m string) bool { return m == id })

	if g.potato.HolderID == id {
		g.potato.HolderID = ""
		g.potato.HeldSince = time.Time{}
	}

	switch {
	case len(g.live) == 0:
		g.release(now)
		g.potato.InFlight = false

	case len(g.live) == 1:
		if g.potato.HolderID != g.live[0] {
			g.hand(g.live[0], now)
			r.NewHolder = g.live[0]
		}

	case g.potato.HolderID == "" && !g.potato.InFlight:
		next, _ := g.pick()
		g.hand(next, now)
		r.NewHolder = next

	case g.potato.InFlight && g.potato.Target == id:
		next, _ := g.pick(g.potato.Launcher)
		g.potato.Target = next
		r.NewTarget = next
	}
	return r
}

func (g *game) winner() (string, bool) {
	if len(g.live) != 1 {
		return "", false
	}
	return g.live[0], true
}

// heldFor includes the running tenure.
func (g *game) heldFor(id string, now time.Time) time.Duration {
	d := g.held[id]
	if g.potato.HolderID == id {
		d += now.Sub(g.potato.HeldSince)
	}
	return d
}

func (g *game) reset() {
	g.potato = Potato{MaxHold: g.potato.MaxHold}
	g.live = nil
	g.eliminations = nil
	clear(g.held)
	g.tenure++
}
