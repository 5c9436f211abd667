// Package orchestrator drives the cycle loop of spec.md §4.8: each cycle
// it asks ReadySelector which inferences may run, dispatches them one at a
// time in flow-index order through internal/sequence, and folds their
// outcomes back into the Blackboard and the run's concept Reference store
// before the next cycle begins. Dispatch itself is single-threaded
// cooperative (spec.md §5); the faculty semaphore instead bounds
// concurrent PerceptionRouter calls a single sequence stage makes.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"normcode/internal/blackboard"
	"normcode/internal/compiler"
	"normcode/internal/logging"
	"normcode/internal/paradigm"
	"normcode/internal/perception"
	"normcode/internal/refalgebra"
	"normcode/internal/sequence"
)

// Config tunes one run of the Orchestrator.
type Config struct {
	MaxConcurrentFaculty int64 // semaphore weight; <=0 means 1
	StallCycles          int   // consecutive no-progress cycles before giving up; <=0 means 20
	MaxCycles            int   // hard cap on cycle count; <=0 means unlimited
	CycleTimeout         time.Duration // per-cycle dispatch deadline; <=0 means none
}

func (c Config) normalized() Config {
	if c.MaxConcurrentFaculty <= 0 {
		c.MaxConcurrentFaculty = 1
	}
	if c.StallCycles <= 0 {
		c.StallCycles = 20
	}
	return c
}

// Orchestrator runs one plan (one ConceptRepo + InferenceRepo pair) to
// completion, failure, cancellation, or stall.
type Orchestrator struct {
	config     Config
	concepts   *compiler.ConceptRepo
	inferences *compiler.InferenceRepo
	bb         *blackboard.Blackboard
	workspace  *blackboard.Workspace
	router     *perception.PerceptionRouter
	loader     paradigm.Loader
	registry   paradigm.FacultyRegistry

	mu         sync.Mutex
	references map[string]*refalgebra.Reference // concept ID -> bound value
	loops      map[string]*loopState            // Looping inference ID -> its current iteration, while its subtree is still working
	loopIter   map[string]int                   // Looping inference ID -> next RunContext.LoopIteration to hand it

	metrics *Metrics
	sem     *semaphore.Weighted // bounds concurrent PerceptionRouter.Transmute calls, not inference dispatch

	producerOf map[string]string // concept ID -> producing inference ID
	idByName   map[string]string // concept name -> concept ID, for binding a loop's current-element concept
}

// loopState is what the orchestrator remembers about a Looping inference
// between the cycle it starts an iteration and the cycle its subtree
// finishes that iteration, per spec.md §4.6's LR callback.
type loopState struct {
	wi        compiler.LoopingWI
	iteration int
}

// New builds an Orchestrator. seedReferences pre-binds ground concepts
// (leaf concepts with no producing inference) before the first cycle;
// the caller is responsible for materializing every ground concept the
// plan names, since the orchestrator itself never invents a value for a
// concept nothing in the repo produces.
func New(
	concepts *compiler.ConceptRepo,
	inferences *compiler.InferenceRepo,
	router *perception.PerceptionRouter,
	loader paradigm.Loader,
	registry paradigm.FacultyRegistry,
	seedReferences map[string]*refalgebra.Reference,
	config Config,
) *Orchestrator {
	ids := make([]string, 0, len(inferences.Inferences))
	producerOf := map[string]string{}
	for id, inf := range inferences.Inferences {
		ids = append(ids, id)
		if inf.OutputConceptID != "" {
			producerOf[inf.OutputConceptID] = id
		}
	}
	idByName := make(map[string]string, len(concepts.Concepts))
	for id, c := range concepts.Concepts {
		idByName[c.Name] = id
	}
	refs := make(map[string]*refalgebra.Reference, len(seedReferences))
	for k, v := range seedReferences {
		refs[k] = v
	}
	return &Orchestrator{
		config:     config.normalized(),
		concepts:   concepts,
		inferences: inferences,
		bb:         blackboard.New(ids),
		workspace:  blackboard.NewWorkspace(),
		router:     router,
		loader:     loader,
		registry:   registry,
		references: refs,
		loops:      map[string]*loopState{},
		loopIter:   map[string]int{},
		metrics:    NewMetrics(),
		sem:        semaphore.NewWeighted(config.normalized().MaxConcurrentFaculty),
		producerOf: producerOf,
		idByName:   idByName,
	}
}

// Blackboard exposes the run's Blackboard, e.g. for checkpointing.
func (o *Orchestrator) Blackboard() *blackboard.Blackboard { return o.bb }

// References returns a copy of the current concept Reference store.
func (o *Orchestrator) References() map[string]*refalgebra.Reference {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*refalgebra.Reference, len(o.references))
	for k, v := range o.references {
		out[k] = v
	}
	return out
}

// Metrics returns a snapshot of run metrics.
func (o *Orchestrator) Metrics() MetricsSnapshot { return o.metrics.Snapshot() }

// Outcome is Run's terminal result.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Stalled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Stalled:
		return "Stalled"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Run drives the cycle loop until every inference resolves, the context
// is cancelled, or progress stalls.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	log := logging.Get(logging.CategoryOrchestrator)
	stall := newStallDetector(o.config.StallCycles)

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled at cycle %d: %v", cycle, err)
			return Cancelled, err
		}
		if o.config.MaxCycles > 0 && cycle > o.config.MaxCycles {
			err := fmt.Errorf("orchestrator: exceeded max cycles (%d)", o.config.MaxCycles)
			log.Error("run failed at cycle %d: %v", cycle, err)
			return Failed, err
		}

		ready := ReadySelector(o.inferences, o.concepts, o.bb, o.producerOf)
		if len(ready) == 0 {
			if o.allTerminal() {
				o.metrics.recordCycle(cycle)
				return Completed, nil
			}
			if stall.tick(false) {
				log.Warn("run stalled at cycle %d: no ready inferences and no progress for %d cycles", cycle, o.config.StallCycles)
				return Stalled, fmt.Errorf("orchestrator: stalled after %d cycles with no progress", o.config.StallCycles)
			}
			continue
		}
		stall.tick(true)

		ordered := OrderReady(ready, o.loopContinuations())
		if err := o.dispatchCycle(ctx, cycle, ordered); err != nil {
			return Failed, err
		}
		o.metrics.recordCycle(cycle)
	}
}

// dispatchCycle runs every ready inference this cycle one at a time, in
// ids' flow-index order, so that each inference's effects on the
// Blackboard and Reference store are fully visible before the next one
// starts. spec.md §5 requires the orchestrator to be "single-threaded
// cooperative within a run," and §4.8 calls a cycle's dispatch
// "synchronous" for exactly this reason: a loop-continuation's Workspace
// storage must land before its sibling inferences in the same cycle run.
func (o *Orchestrator) dispatchCycle(ctx context.Context, cycle int, ids []string) error {
	if o.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.CycleTimeout)
		defer cancel()
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.runOne(ctx, cycle, id); err != nil {
			return err
		}
	}
	return nil
}

// runOne transitions one inference through Ready->InProgress->{Completed,
// Failed}, invoking its Sequence in between.
func (o *Orchestrator) runOne(ctx context.Context, cycle int, id string) error {
	log := logging.Get(logging.CategoryOrchestrator)
	inf := o.inferences.Inferences[id]

	if err := o.bb.Transition(id, blackboard.Ready, cycle); err != nil {
		return err
	}
	if err := o.bb.Transition(id, blackboard.InProgress, cycle); err != nil {
		return err
	}

	seq, err := sequence.For(inf.SequenceKind)
	if err != nil {
		o.bb.Fail(id, cycle, err)
		return err
	}

	rc := o.buildRunContext(inf, cycle)
	outcome, err := seq.Run(ctx, rc)
	if err != nil {
		log.Error("inference %s failed: %v", id, err)
		o.metrics.recordFailure()
		return o.bb.Fail(id, cycle, err)
	}

	o.mu.Lock()
	if outcome.Output != nil && inf.OutputConceptID != "" {
		o.references[inf.OutputConceptID] = outcome.Output
	}
	o.mu.Unlock()

	if outcome.Skip {
		o.metrics.recordSkip()
		if err := o.bb.Transition(id, blackboard.CompletedSkipped, cycle); err != nil {
			return err
		}
		return o.foldLoopProgress(id)
	}

	if inf.SequenceKind == compiler.Looping && outcome.Continue {
		// This iteration's subtree hasn't run yet: stay InProgress and let
		// foldLoopProgress bring the Looping inference back to Pending,
		// via Reset, once every descendant resolves for rc.LoopIteration.
		o.metrics.recordIteration()
		wi, _ := inf.WorkingInterpretation.(compiler.LoopingWI)
		descendants := descendantsOf(id, o.inferences)
		if rc.LoopIteration > 0 {
			// A prior iteration's descendants are sitting resolved from the
			// last foldLoopProgress call; only now that we know there is a
			// next iteration do we reset them to run it.
			for _, d := range descendants {
				if o.isInvariantProducer(wi, d) {
					continue
				}
				if err := o.bb.Reset(d); err != nil {
					return err
				}
			}
		}
		o.startLoopIteration(id, wi, rc.LoopIteration, outcome.Output)
		if descendants == nil {
			return o.bb.Reset(id)
		}
		return nil
	}

	o.metrics.recordCompletion()
	if inf.SequenceKind == compiler.Looping {
		o.mu.Lock()
		delete(o.loops, id)
		o.mu.Unlock()
	}
	if err := o.bb.Transition(id, blackboard.Completed, cycle); err != nil {
		return err
	}
	return o.foldLoopProgress(id)
}

// startLoopIteration records that a Looping inference has begun iteration
// and is waiting on its subtree, reserves the next iteration number for
// its following dispatch, and binds current (this iteration's element of
// the loop base) into the Reference store under the loop's
// CurrentLoopBaseConcept, the way a descendant's ValueConceptIDs expects
// to find it.
func (o *Orchestrator) startLoopIteration(id string, wi compiler.LoopingWI, iteration int, current *refalgebra.Reference) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loops[id] = &loopState{wi: wi, iteration: iteration}
	o.loopIter[id] = iteration + 1
	if cid, ok := o.idByName[wi.CurrentLoopBaseConcept]; ok && current != nil {
		o.references[cid] = current
	}
}

// foldLoopProgress is the orchestrator-level callback spec.md §4.6 and §5
// describe: once every descendant of an active Looping inference has
// resolved for its current iteration, it folds that descendant subtree's
// ConceptToInfer output into the Workspace and resets the Looping
// inference itself back to Pending so it re-dispatches, either starting
// the next iteration or finalizing. Descendants are left at their
// terminal status here; runOne resets them only once it knows, from the
// Looping inference's own next dispatch, that there is another iteration
// for them to run.
func (o *Orchestrator) foldLoopProgress(completedID string) error {
	o.mu.Lock()
	loopID, st := o.activeLoopFor(completedID)
	o.mu.Unlock()
	if loopID == "" {
		return nil
	}

	descendants := descendantsOf(loopID, o.inferences)
	if !o.allResolved(descendants) {
		return nil // sibling descendants are still working this iteration
	}

	o.mu.Lock()
	snap, ok := o.workspace.Get(st.wi.LoopIndex, st.iteration)
	if !ok {
		snap = map[string]*refalgebra.Reference{}
	}
	for _, d := range descendants {
		dinf := o.inferences.Inferences[d]
		if dinf.OutputConceptID == "" {
			continue
		}
		concept, ok := o.concepts.Concepts[dinf.OutputConceptID]
		if !ok || concept.Name != st.wi.ConceptToInfer {
			continue
		}
		if ref, ok := o.references[dinf.OutputConceptID]; ok {
			snap[st.wi.ConceptToInfer] = ref
		}
	}
	o.workspace.Store(st.wi.LoopIndex, st.iteration, snap)
	o.mu.Unlock()

	return o.bb.Reset(loopID)
}

// activeLoopFor returns the innermost active Looping inference whose
// subtree contains id, if any. Called with o.mu held.
func (o *Orchestrator) activeLoopFor(id string) (string, *loopState) {
	var bestID string
	var bestState *loopState
	for loopID, st := range o.loops {
		for _, d := range descendantsOf(loopID, o.inferences) {
			if d == id && len(loopID) > len(bestID) {
				bestID, bestState = loopID, st
				break
			}
		}
	}
	return bestID, bestState
}

// isInvariantProducer reports whether d's output concept is one of the
// loop's declared invariant concepts, per spec.md §4.7's "invariants
// survive reset" rule.
func (o *Orchestrator) isInvariantProducer(wi compiler.LoopingWI, d string) bool {
	dinf := o.inferences.Inferences[d]
	if dinf == nil || dinf.OutputConceptID == "" {
		return false
	}
	concept, ok := o.concepts.Concepts[dinf.OutputConceptID]
	if !ok {
		return false
	}
	_, invariant := wi.InLoopConcept[concept.Name]
	return invariant
}

// allResolved reports whether every id has reached a terminal status.
func (o *Orchestrator) allResolved(ids []string) bool {
	for _, id := range ids {
		e, ok := o.bb.Get(id)
		if !ok {
			return false
		}
		if e.Status != blackboard.Completed && e.Status != blackboard.Failed && e.Status != blackboard.CompletedSkipped {
			return false
		}
	}
	return true
}

// buildRunContext resolves the named value/context inputs an inference's
// Sequence expects, from the shared concept Reference store. For a
// Looping inference, LoopIteration is the loop's own iteration counter
// (advanced by startLoopIteration), not the run's cycle number: a loop's
// subtree can span many cycles per iteration once dispatch is sequential.
func (o *Orchestrator) buildRunContext(inf *compiler.Inference, cycle int) sequence.RunContext {
	o.mu.Lock()
	inputs := map[string]*refalgebra.Reference{}
	for _, cid := range append(append([]string{}, inf.ValueConceptIDs...), inf.ContextConceptIDs...) {
		concept, ok := o.concepts.Concepts[cid]
		if !ok {
			continue
		}
		if ref, ok := o.references[cid]; ok {
			inputs[concept.Name] = ref
		}
	}
	loopIteration := cycle
	if inf.SequenceKind == compiler.Looping {
		loopIteration = o.loopIter[inf.ID]
	}
	o.mu.Unlock()

	return sequence.RunContext{
		Inference:     inf,
		OutputConcept: inf.OutputConceptID,
		Inputs:        inputs,
		Router:        o.router,
		Loader:        o.loader,
		Registry:      o.registry,
		Blackboard:    o.bb,
		Workspace:     o.workspace,
		FacultySem:    o.sem,
		DescendantIDs: descendantsOf(inf.ID, o.inferences),
		LoopIteration: loopIteration,
	}
}

func (o *Orchestrator) allTerminal() bool {
	ids := make([]string, 0, len(o.inferences.Inferences))
	for id := range o.inferences.Inferences {
		ids = append(ids, id)
	}
	return o.allResolved(ids)
}

// loopContinuations reports which Looping inference ids have already been
// dispatched at least once (LastCycle > 0), since a re-dispatched loop iteration takes
// scheduling priority over starting fresh work (spec.md §4.8's
// "LR-continuation-first" ordering rule).
func (o *Orchestrator) loopContinuations() map[string]bool {
	out := map[string]bool{}
	for id, inf := range o.inferences.Inferences {
		if inf.SequenceKind != compiler.Looping {
			continue
		}
		if e, ok := o.bb.Get(id); ok && e.LastCycle > 0 {
			out[id] = true
		}
	}
	return out
}

// descendantsOf returns every inference id whose flow index is a strict
// dot-prefix extension of id, sorted by id string, for Timing's skip
// propagation.
func descendantsOf(id string, repo *compiler.InferenceRepo) []string {
	var out []string
	prefix := id + "."
	for otherID := range repo.Inferences {
		if len(otherID) > len(prefix) && otherID[:len(prefix)] == prefix {
			out = append(out, otherID)
		}
	}
	sort.Strings(out)
	return out
}
