package scan

import (
	"os"
	"sync/atomic"
)

// Gate is an external condition that suspends iteration between
// targets. The engine polls it at target boundaries; iteration resumes
// automatically once the condition clears.
type Gate interface {
	Paused() bool
}

// MarkerFile pauses the scan while a well-known file exists. Creating
// the file halts iteration at the next target boundary, removing it
// resumes.
type MarkerFile struct {
	Path string
}

func (g MarkerFile) Paused() bool {
	if g.Path == "" {
		return false
	}
	_, err := os.Stat(g.Path)
	return err == nil
}

// Manual is an in-process gate toggled by the operator or by tests.
type Manual struct {
	paused atomic.Bool
}

func (g *Manual) Paused() bool { return g.paused.Load() }

func (g *Manual) Set(v bool) { g.paused.Store(v) }

// Toggle flips the gate and returns the new state.
func (g *Manual) Toggle() bool {
	for {
		old := g.paused.Load()
		if g.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

type anyGate []Gate

func (g anyGate) Paused() bool {
	for _, gate := range g {
		if gate.Paused() {
			return true
		}
	}
	return false
}

// Any combines gates; the scan is paused while any of them is.
func Any(gates ...Gate) Gate {
	return anyGate(gates)
}
