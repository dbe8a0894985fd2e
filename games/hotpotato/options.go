package hotpotato

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxHold is how long a player may hold the potato before being eliminated
	DefaultMaxHold = 5 * time.Minute

	// DefaultTick is the hold timer resolution
	DefaultTick = time.Second

	// DefaultWarnBefore is the single warning threshold, measured back from the deadline
	DefaultWarnBefore = 30 * time.Second

	// DefaultMaxPlayers caps the lobby size
	DefaultMaxPlayers = 10

	// MinPlayers is the smallest required player count a host may set
	MinPlayers = 2

	// MaxNameLength is the longest display name, in runes
	MaxNameLength = 24

	// SessionIDLength is the length of generated session ids
	SessionIDLength = 8

	// SessionIDChars are the characters session ids are drawn from
	SessionIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Options configures every session created by a Manager.
type Options struct {
	MaxHold         time.Duration
	Tick            time.Duration
	WarnBefore      []time.Duration
	FlightTime      time.Duration
	MaxPlayers      int
	ReturnToThrower bool

	Logger *zap.Logger

	// Now and NewRand are replaced in tests.
	Now     func() time.Time
	NewRand func() *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.MaxHold <= 0 {
		o.MaxHold = DefaultMaxHold
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.WarnBefore == nil {
		o.WarnBefore = []time.Duration{DefaultWarnBefore}
	}
	o.WarnBefore = slices.Clone(o.WarnBefore)
	if o.FlightTime < 0 {
		o.FlightTime = 0
	}
	if o.MaxPlayers < MinPlayers {
		o.MaxPlayers = DefaultMaxPlayers
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewRand == nil {
		o.NewRand = newRand
	}
	return o
}

// newRand returns a generator seeded from crypto/rand. Each session gets its own,
// since *rand.Rand is not safe for concurrent use.
func newRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}
