// Package statemachine declares allowed transitions between string-typed
// states. Records keep their own current state (usually in the database);
// a Table only answers whether a move is legal and which states may lead to
// a target, which is what conditional store updates need.
package statemachine

import (
	"fmt"
	"slices"
)

// Table is an immutable set of allowed from→to transitions.
type Table[S ~string] struct {
	next map[S][]S
}

// Transition is a single allowed edge.
type Transition[S ~string] struct {
	From S
	To   []S
}

// New builds a table from the given edges.
func New[S ~string](transitions ...Transition[S]) Table[S] {
	t := Table[S]{next: make(map[S][]S, len(transitions))}
	for _, tr := range transitions {
		for _, to := range tr.To {
			if !slices.Contains(t.next[tr.From], to) {
				t.next[tr.From] = append(t.next[tr.From], to)
			}
		}
	}
	return t
}

// Can reports whether from → to is allowed.
func (t Table[S]) Can(from, to S) bool {
	return slices.Contains(t.next[from], to)
}

// Check is Can with a descriptive error.
func (t Table[S]) Check(from, to S) error {
	if !t.Can(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return nil
}

// Sources returns every state that may move to target, sorted.
func (t Table[S]) Sources(target S) []S {
	var out []S
	for from, tos := range t.next {
		if slices.Contains(tos, target) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}
