package authbroker

// State is where a scope set is in the acquisition state machine:
//
//	NotRequested → Silent → Cached
//	                     ↘ InteractionRequired → Interactive → Cached
//	                     ↘ Failed              ↘ Failed
//
// Failed and an expired Cached both lead back to Silent on the next request.
type State int

// Acquisition states.
const (
	StateNotRequested State = iota
	StateSilent
	StateInteractionRequired
	StateInteractive
	StateCached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSilent:
		return "silent"
	case StateInteractionRequired:
		return "interaction_required"
	case StateInteractive:
		return "interactive"
	case StateCached:
		return "cached"
	case StateFailed:
		return "failed"
	default:
		return "not_requested"
	}
}

// State reports the acquisition state of set and, for StateFailed, the
// error of the last attempt. An expired cached token reports NotRequested.
func (b *Broker) State(set ScopeSet) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[set.key()]
	if !ok {
		return StateNotRequested, nil
	}

	if rec.state == StateCached && !b.validLocked(rec) {
		return StateNotRequested, nil
	}

	return rec.state, rec.err
}
