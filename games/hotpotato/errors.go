package hotpotato

import "errors"

var (
	ErrLobbyFull      = errors.New("lobby full")
	ErrAlreadyJoined  = errors.New("player already joined")
	ErrInvalidName    = errors.New("invalid display name")
	ErrNameTaken      = errors.New("display name taken")
	ErrNotHost        = errors.New("only the host may do that")
	ErrInvalidCount   = errors.New("invalid required player count")
	ErrWrongPhase     = errors.New("not allowed in this phase")
	ErrNotHolder      = errors.New("player is not holding the potato")
	ErrNoRecipient    = errors.New("no player to throw to")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrSessionClosed  = errors.New("session closed")
)
