package installer

import (
	"fmt"

	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
)

// State is a step of the install state machine.
type State int

const (
	StateStart State = iota
	StatePrepareWorkspace
	StateInstallLoader
	StateInstallMods
	StateInstallResources
	StatePostInstall
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"start", "prepareWorkspace", "installLoader", "installMods",
	"installResources", "postInstall", "done", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// phase is the event phase announced on entering s, if any.
func (s State) phase() (event.Phase, bool) {
	switch s {
	case StatePrepareWorkspace:
		return event.PhasePrepareWorkspace, true
	case StateInstallLoader:
		return event.PhaseDownloadModLoader, true
	case StateInstallMods:
		return event.PhaseDownloadMods, true
	case StateInstallResources:
		return event.PhaseDownloadResources, true
	default:
		return "", false
	}
}

// machine enforces forward-only transitions. Failed is reachable from any
// non-terminal state.
type machine struct {
	state State
}

func (m *machine) advance(to State) error {
	from := m.state
	switch {
	case from.Terminal():
		return fmt.Errorf("invalid transition %s -> %s: run already finished", from, to)
	case to == StateFailed:
	case to <= from:
		return fmt.Errorf("invalid transition %s -> %s: states only move forward", from, to)
	}
	m.state = to
	return nil
}
