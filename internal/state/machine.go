// Package state defines the finite state machines for the three booking
// domains.  Each machine owns a fixed transition table mapping
// (current state, action) to the next state; anything not in the table is
// an invalid transition.  Tables are built once at startup and never
// mutated, so machines are safe for concurrent use.
package state

import "github.com/iliyamo/hotel-booking-lifecycle/internal/model"

// Machine is a finite state machine over one domain's state type.  A state
// with no outgoing edges is terminal.
type Machine[S ~string] struct {
	domain  model.Domain
	initial S
	table   map[S]map[model.Action]S
}

// Domain returns the domain this machine governs.
func (m *Machine[S]) Domain() model.Domain { return m.domain }

// Initial returns the designated initial state.
func (m *Machine[S]) Initial() S { return m.initial }

// Next returns the state reached by applying action to current.  The
// second return value is false when the transition is not in the table.
func (m *Machine[S]) Next(current S, action model.Action) (S, bool) {
	edges, ok := m.table[current]
	if !ok {
		var zero S
		return zero, false
	}
	next, ok := edges[action]
	return next, ok
}

// CanTransition reports whether action is legal from current.  It is a
// pure table lookup used for dry-run checks; nothing is mutated.
func (m *Machine[S]) CanTransition(current S, action model.Action) bool {
	_, ok := m.Next(current, action)
	return ok
}

// Produces reports whether any edge labelled action leads to target.
// Terminal states have no outgoing edges, so Next cannot answer "would
// this action have landed here"; Produces scans the whole table instead.
// The engine uses it to recognize redelivered requests for an outcome
// that already happened.
func (m *Machine[S]) Produces(action model.Action, target S) bool {
	for _, edges := range m.table {
		if next, ok := edges[action]; ok && next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (m *Machine[S]) IsTerminal(s S) bool {
	return len(m.table[s]) == 0
}

// Actions returns the actions legal from current.  Used by the preview
// endpoint to list what a caller could request next.
func (m *Machine[S]) Actions(current S) []model.Action {
	edges := m.table[current]
	out := make([]model.Action, 0, len(edges))
	for a := range edges {
		out = append(out, a)
	}
	return out
}
