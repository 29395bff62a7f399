package models

import (
	"fmt"
	"strings"
)

// Type is the closed set of punishment kinds.
type Type string

const (
	TypeBan     Type = "BAN"
	TypeTempBan Type = "TEMPBAN"
	TypeIPBan   Type = "IPBAN"
	TypeMute    Type = "MUTE"
	TypeWarn    Type = "WARN"
	TypeCheck   Type = "CHECK"
)

var knownTypes = map[Type]struct{}{
	TypeBan:     {},
	TypeTempBan: {},
	TypeIPBan:   {},
	TypeMute:    {},
	TypeWarn:    {},
	TypeCheck:   {},
}

// ParseType normalizes s and rejects anything outside the closed set.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown punishment type %q", s)
	}
	return t, nil
}

func (t Type) String() string { return string(t) }

// IsBanLike reports whether t denies access to the network.
func (t Type) IsBanLike() bool {
	return t == TypeBan || t == TypeTempBan || t == TypeIPBan
}

// BlocksLogin reports whether an active punishment of type t stops a
// connection at the gate. An unacknowledged WARN blocks until it lapses.
func (t Type) BlocksLogin() bool {
	return t.IsBanLike() || t == TypeWarn
}

// IsMuteLike reports whether t silences chat without denying access.
func (t Type) IsMuteLike() bool {
	return t == TypeMute
}

// Action labels a lifecycle transition in the history log. The set is open:
// callers may pass their own codes to RemovePunishment.
type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionManualRemove Action = "MANUAL_REMOVE"
	ActionExpire       Action = "EXPIRE"
)

// SystemActor is recorded when the engine itself causes a transition.
const SystemActor = "System"
