package hotpotato

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

type Phase string

const (
	PhaseForming   Phase = "forming"
	PhaseActive    Phase = "active"
	PhaseConcluded Phase = "concluded"
)

// Player is a joined member of a session.
type Player struct {
	ID        string
	Name      string
	Connected bool
}

// Lobby is the admission half of a session. Members are kept in join order,
// which decides the host.
type Lobby struct {
	Members  []string
	Players  map[string]*Player
	Required int
	Phase    Phase
	HostID   string
	Max      int
}

func newLobby(max int) Lobby {
	return Lobby{
		Players: make(map[string]*Player),
		Phase:   PhaseForming,
		Max:     max,
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

func (l *Lobby) join(id, name string) error {
	if l.Phase != PhaseForming {
		return fmt.Errorf("%w: game in progress", ErrLobbyFull)
	}
	if _, ok := l.Players[id]; ok {
		return ErrAlreadyJoined
	}
	if len(l.Members) >= l.Max {
		return ErrLobbyFull
	}

	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	for _, p := range l.Players {
		if strings.EqualFold(p.Name, name) {
			return ErrNameTaken
		}
	}

	l.Members = append(l.Members, id)
	l.Players[id] = &Player{ID: id, Name: name, Connected: true}
	if l.HostID == "" {
		l.HostID = id
	}
	return nil
}

func (l *Lobby) setRequiredPlayers(actor string, count int) error {
	if l.Phase != PhaseForming {
		return ErrWrongPhase
	}
	if actor == "" || actor != l.HostID {
		return ErrNotHost
	}
	if count < MinPlayers || count > l.Max {
		return ErrInvalidCount
	}
	l.Required = count
	return nil
}

// evaluateStart must run in the same step as every join and every
// setRequiredPlayers, the only events that can make it true.
func (l *Lobby) evaluateStart() bool {
	return l.Phase == PhaseForming && l.Required > 0 && len(l.Members) == l.Required
}

// leave reports whether the host moved to another member.
func (l *Lobby) leave(id string) (hostChanged bool) {
	if _, ok := l.Players[id]; !ok {
		return false
	}
	l.Players[id].Connected = false
	delete(l.Players, id)
	l.Members = slices.DeleteFunc(l.Members, func(m string) bool { return m == id })

	if l.HostID != id {
		return false
	}
	l.HostID = ""
	if len(l.Members) > 0 {
		l.HostID = l.Members[0]
	}
	return l.HostID != ""
}

func (l *Lobby) isMember(id string) bool {
	_, ok := l.Players[id]
	return ok
}

func (l *Lobby) name(id string) string {
	if p, ok := l.Players[id]; ok {
		return p.Name
	}
	return ""
}
