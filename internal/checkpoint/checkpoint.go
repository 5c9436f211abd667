// Package checkpoint implements the run-resumable Checkpoint Store of
// spec.md §4.9: periodic Snapshots of Blackboard entries, References and
// plan shapes (no Workspace state is captured), and
// the Patch/Overwrite/FillGaps reconciliation strategies a resumed run
// applies against a freshly-built Blackboard, and the resuming
// InferenceRepo, before the Orchestrator resumes its cycle loop.
package checkpoint

import (
	"sort"

	"normcode/internal/blackboard"
	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

// Snapshot is one point-in-time capture of a run, keyed by RunID. ForkOf
// is set when this run was created by forking another run's history.
type Snapshot struct {
	RunID      string
	ForkOf     string
	Cycle      int
	Entries    map[string]blackboard.Entry
	References map[string]*refalgebra.Reference
	// Shapes records, per inference id, the plan shape at snapshot time.
	// Reconcile diffs this against the resuming InferenceRepo to detect a
	// changed plan (spec.md §4.9's "different WI or function concept").
	Shapes map[string]InferenceShape
}

// InferenceShape is the part of an inference's definition Reconcile diffs
// against a resuming InferenceRepo. SequenceKind stands in for "different
// WI" (the two are in 1:1 correspondence: every WorkingInterpretation
// implementation's Kind() returns exactly one SequenceKind), since the
// WorkingInterpretation interface itself isn't a comparable, serializable
// value.
type InferenceShape struct {
	SequenceKind        compiler.SequenceKind
	FunctionalConceptID string
	OutputConceptID     string
}

// ShapeOf captures inf's diffable shape.
func ShapeOf(inf *compiler.Inference) InferenceShape {
	return InferenceShape{
		SequenceKind:        inf.SequenceKind,
		FunctionalConceptID: inf.FunctionalConceptID,
		OutputConceptID:     inf.OutputConceptID,
	}
}

// ShapesOf captures every inference's shape, for Save.
func ShapesOf(repo *compiler.InferenceRepo) map[string]InferenceShape {
	out := make(map[string]InferenceShape, len(repo.Inferences))
	for id, inf := range repo.Inferences {
		out[id] = ShapeOf(inf)
	}
	return out
}

// Store persists and retrieves Snapshots. Implementations must treat Save
// as an upsert keyed by RunID, since a run checkpoints many times over its
// lifetime.
type Store interface {
	Save(snap Snapshot) error
	Load(runID string) (Snapshot, error)
	Fork(fromRunID, toRunID string) (Snapshot, error)
}

// NotFoundError reports a Load or Fork against a RunID the Store has no
// record of.
type NotFoundError struct{ RunID string }

func (e *NotFoundError) Error() string { return "checkpoint: no snapshot for run " + e.RunID }

// Strategy is the closed set of reconciliation modes spec.md §4.9 names
// for applying a loaded Snapshot onto a freshly-built Blackboard.
type Strategy int

const (
	// Patch resets every inference whose shape changed since the snapshot,
	// and everything downstream of it, to Pending; for every other
	// snapshot entry it copies the recorded status onto the fresh
	// Blackboard where that board lacks the entry or still holds Pending.
	Patch Strategy = iota
	// Overwrite force-sets every entry the snapshot recorded, discarding
	// whatever the fresh Blackboard computed for those ids.
	Overwrite
	// FillGaps takes exactly the same path as Patch in Reconcile: changed
	// inferences and their downstream are reset to Pending as well, and
	// no behaviour of its own distinguishes it from Patch.
	FillGaps
)

// Reconcile applies snap onto bb per strategy, in place. repo is the
// InferenceRepo the resuming plan just compiled to: Patch and FillGaps use
// it to detect an inference whose shape changed since the snapshot was
// taken, in which case that inference and everything downstream of its
// output concept are forced Pending regardless of what the snapshot
// recorded for them.
func Reconcile(bb *blackboard.Blackboard, snap Snapshot, repo *compiler.InferenceRepo, strategy Strategy) {
	changed := changedSince(snap, repo)

	for id, entry := range snap.Entries {
		switch strategy {
		case Overwrite:
			bb.Reconcile(id, entry.Status, entry.LastCycle)
		case Patch, FillGaps:
			if changed[id] {
				bb.Reconcile(id, blackboard.Pending, entry.LastCycle)
				for _, downstream := range downstreamOf(id, repo) {
					bb.Reconcile(downstream, blackboard.Pending, entry.LastCycle)
				}
				continue
			}
			if _, ok := bb.Get(id); !ok {
				bb.Reconcile(id, entry.Status, entry.LastCycle)
				continue
			}
			current, _ := bb.Get(id)
			if current.Status == blackboard.Pending {
				bb.Reconcile(id, entry.Status, entry.LastCycle)
			}
		}
	}
}

// changedSince reports which snapshot-time inferences have a different
// shape in repo now, per spec.md §4.9.
func changedSince(snap Snapshot, repo *compiler.InferenceRepo) map[string]bool {
	changed := map[string]bool{}
	for id, shape := range snap.Shapes {
		inf, ok := repo.Inferences[id]
		if !ok {
			continue // dropped from the plan entirely; nothing to diff against
		}
		if ShapeOf(inf) != shape {
			changed[id] = true
		}
	}
	return changed
}

// downstreamOf returns every inference in repo that transitively consumes
// id's output concept, tracing value/context concept dependencies rather
// than flow-index nesting.
func downstreamOf(id string, repo *compiler.InferenceRepo) []string {
	consumers := map[string][]string{}
	for otherID, inf := range repo.Inferences {
		for _, cid := range append(append([]string{}, inf.ValueConceptIDs...), inf.ContextConceptIDs...) {
			consumers[cid] = append(consumers[cid], otherID)
		}
	}

	seen := map[string]bool{id: true}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		inf, ok := repo.Inferences[cur]
		if !ok || inf.OutputConceptID == "" {
			continue
		}
		for _, next := range consumers[inf.OutputConceptID] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	sort.Strings(out)
	return out
}
