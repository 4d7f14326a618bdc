// Package index schedules per-place index computation in rank order.
//
// A run is planned by Partition, which splits pending places into a
// boundary phase and a rank phase. Each phase is a sequence of rank groups;
// the Scheduler dispatches one group at a time to a bounded worker pool and
// waits for every batch of the group before starting the next one. The
// boundary phase finishes before the first rank group is dispatched.
package index

// Selection mirrors the two command line switches. Both false means
// "index everything".
type Selection struct {
	BoundariesOnly bool
	RanksOnly      bool
}

// Phases is the resolved set of phases a run executes.
type Phases struct {
	Boundaries bool
	Ranks      bool
}

// ResolvePhases turns the switches into phases. The switches are
// independent enables: none set runs both, one set runs that one, and both
// set also runs both.
func ResolvePhases(sel Selection) Phases {
	if !sel.BoundariesOnly && !sel.RanksOnly {
		return Phases{Boundaries: true, Ranks: true}
	}
	return Phases{Boundaries: sel.BoundariesOnly, Ranks: sel.RanksOnly}
}

// Any reports whether at least one phase is enabled.
func (p Phases) Any() bool {
	return p.Boundaries || p.Ranks
}

func (p Phases) String() string {
	switch {
	case p.Boundaries && p.Ranks:
		return "boundaries+ranks"
	case p.Boundaries:
		return "boundaries"
	case p.Ranks:
		return "ranks"
	default:
		return "none"
	}
}
