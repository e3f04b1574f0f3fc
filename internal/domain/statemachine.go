package domain

// transitionPair is one allowed (from, to) edge in a state graph.
type transitionPair struct {
	from string
	to   string
}

// Machine validates state transitions against a fixed set of allowed
// (from, to) pairs plus a set of terminal states. Same-state transitions
// are always allowed so callers can retry safely. Terminal states reject
// every outgoing transition except to themselves.
//
// The full graph lives in one data structure per entity (see
// SessionMachine, ApprovalMachine, ConnectionMachine) so the rules stay
// auditable in one place. Machines are pure and safe for concurrent use.
type Machine struct {
	entity   string
	allowed  map[transitionPair]struct{}
	terminal map[string]struct{}
}

// NewMachine builds a Machine for the named entity from explicit
// transition pairs and terminal states.
func NewMachine(entity string, pairs [][2]string, terminal []string) *Machine {
	m := &Machine{
		entity:   entity,
		allowed:  make(map[transitionPair]struct{}, len(pairs)),
		terminal: make(map[string]struct{}, len(terminal)),
	}
	for _, p := range pairs {
		m.allowed[transitionPair{from: p[0], to: p[1]}] = struct{}{}
	}
	for _, s := range terminal {
		m.terminal[s] = struct{}{}
	}
	return m
}

// Can reports whether the transition from -> to is permitted.
func (m *Machine) Can(from, to string) bool {
	if from == to {
		return true
	}
	if _, isTerminal := m.terminal[from]; isTerminal {
		return false
	}
	_, ok := m.allowed[transitionPair{from: from, to: to}]
	return ok
}

// Check validates the transition and returns a *StateTransitionError
// when it is not permitted.
func (m *Machine) Check(from, to string) error {
	if m.Can(from, to) {
		return nil
	}
	return &StateTransitionError{Entity: m.entity, From: from, To: to}
}

// IsTerminal reports whether the given state accepts no outgoing
// transitions other than to itself.
func (m *Machine) IsTerminal(state string) bool {
	_, ok := m.terminal[state]
	return ok
}
