package sessions

import "github.com/onepointalo/alo/identity"

// State is the store's position in its lifecycle.
type State int

const (
	Initializing State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// Snapshot is the reactive value pair exposed to consumers, plus the state it implies.
type Snapshot struct {
	Session *identity.Session
	Loading bool
	State   State
}
