package blackboard

import (
	"sync"

	"normcode/internal/refalgebra"
)

type workspaceKey struct {
	loopingID string
	iteration int
}

// Workspace stores per-looping-inference, per-iteration snapshots of
// child concepts' References, playing the same role as the teacher's
// ShardExecutionState.Checkpoint field (one resumable state blob per unit
// of work) generalized to full Reference snapshots per concept.
type Workspace struct {
	mu         sync.Mutex
	snapshots  map[workspaceKey]map[string]*refalgebra.Reference
	invariants map[string]map[string]bool // loopingID -> set of invariant concept ids
}

// NewWorkspace returns an empty Workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		snapshots:  map[workspaceKey]map[string]*refalgebra.Reference{},
		invariants: map[string]map[string]bool{},
	}
}

// DeclareInvariants registers which concepts under loopingID survive reset
// between iterations, per spec.md §4.7.
func (w *Workspace) DeclareInvariants(loopingID string, conceptIDs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := make(map[string]bool, len(conceptIDs))
	for _, id := range conceptIDs {
		set[id] = true
	}
	w.invariants[loopingID] = set
}

// Store records iteration's concept snapshots for loopingID.
func (w *Workspace) Store(loopingID string, iteration int, concepts map[string]*refalgebra.Reference) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshots[workspaceKey{loopingID, iteration}] = concepts
}

// Get returns the stored snapshot for (loopingID, iteration).
func (w *Workspace) Get(loopingID string, iteration int) (map[string]*refalgebra.Reference, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap, ok := w.snapshots[workspaceKey{loopingID, iteration}]
	return snap, ok
}

// NextIteration builds iteration+1's starting snapshot: invariant concepts
// are carried forward unchanged from iteration; every other concept named
// in freshNonInvariant starts from the caller-supplied fresh Reference
// (normally a brand-new Skip-filled Reference), per spec.md §4.7's "all
// others are reset" rule.
func (w *Workspace) NextIteration(loopingID string, iteration int, freshNonInvariant map[string]*refalgebra.Reference) map[string]*refalgebra.Reference {
	w.mu.Lock()
	prior := w.snapshots[workspaceKey{loopingID, iteration}]
	invariants := w.invariants[loopingID]
	w.mu.Unlock()

	next := make(map[string]*refalgebra.Reference, len(freshNonInvariant)+len(invariants))
	for id := range invariants {
		if ref, ok := prior[id]; ok {
			next[id] = ref
		}
	}
	for id, ref := range freshNonInvariant {
		if invariants[id] {
			continue // invariants are never overwritten by the fresh set
		}
		next[id] = ref
	}
	w.Store(loopingID, iteration+1, next)
	return next
}
