package orchestrator

import (
	"sort"

	"normcode/internal/blackboard"
	"normcode/internal/compiler"
)

// ReadySelector returns the ids of every Pending inference whose value
// and context concepts are all available: either a ground concept (no
// producing inference in the repo) or produced by an inference whose
// Blackboard status IsProducer() (spec.md §4.8 condition 2).
func ReadySelector(
	inferences *compiler.InferenceRepo,
	concepts *compiler.ConceptRepo,
	bb *blackboard.Blackboard,
	producerOf map[string]string,
) []string {
	var ready []string
	for id, inf := range inferences.Inferences {
		entry, ok := bb.Get(id)
		if !ok || entry.Status != blackboard.Pending {
			continue
		}
		if dependenciesSatisfied(inf, bb, producerOf) {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

func dependenciesSatisfied(inf *compiler.Inference, bb *blackboard.Blackboard, producerOf map[string]string) bool {
	for _, cid := range inf.ValueConceptIDs {
		if !conceptAvailable(cid, bb, producerOf) {
			return false
		}
	}
	for _, cid := range inf.ContextConceptIDs {
		if !conceptAvailable(cid, bb, producerOf) {
			return false
		}
	}
	return true
}

func conceptAvailable(conceptID string, bb *blackboard.Blackboard, producerOf map[string]string) bool {
	producerID, hasProducer := producerOf[conceptID]
	if !hasProducer {
		return true // ground concept, materialized on demand by MVP
	}
	entry, ok := bb.Get(producerID)
	return ok && entry.Status.IsProducer()
}

// OrderReady sorts ready ids deterministically: flow-index lexicographic
// order, except any id already tracked as a loop continuation sorts
// before all fresh work, so an in-progress loop always finishes its
// current iteration ahead of starting unrelated inferences.
func OrderReady(ready []string, loopContinuations map[string]bool) []string {
	out := append([]string(nil), ready...)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := loopContinuations[out[i]], loopContinuations[out[j]]
		if li != lj {
			return li
		}
		return out[i] < out[j]
	})
	return out
}
