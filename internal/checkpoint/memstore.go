package checkpoint

import (
	"sync"

	"normcode/internal/blackboard"
)

// MemStore is an in-memory Store, useful for tests and single-process
// runs that don't need checkpoints to survive a restart.
type MemStore struct {
	mu   sync.Mutex
	snaps map[string]Snapshot
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{snaps: map[string]Snapshot{}}
}

func (s *MemStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.RunID] = snap
	return nil
}

func (s *MemStore) Load(runID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[runID]
	if !ok {
		return Snapshot{}, &NotFoundError{RunID: runID}
	}
	return snap, nil
}

func (s *MemStore) Fork(fromRunID, toRunID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, ok := s.snaps[fromRunID]
	if !ok {
		return Snapshot{}, &NotFoundError{RunID: fromRunID}
	}
	forked := Snapshot{
		RunID:      toRunID,
		ForkOf:     fromRunID,
		Cycle:      from.Cycle,
		Entries:    copyEntries(from.Entries),
		References: from.References,
		Shapes:     from.Shapes,
	}
	s.snaps[toRunID] = forked
	return forked, nil
}

func copyEntries(in map[string]blackboard.Entry) map[string]blackboard.Entry {
	out := make(map[string]blackboard.Entry, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
