package paradigm

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Loader resolves a paradigm id to its declarative document. Kept as an
// interface rather than a hard-coded registry: spec.md §9 directs
// implementations to "treat the paradigm loader as an extension point"
// since the built-in paradigm set is open-ended.
type Loader interface {
	Load(id string) (*Paradigm, error)
}

// FSLoader is the default Loader, reading "<id>.json" from Dir, following
// the teacher's config.Load nested-document-on-disk pattern.
type FSLoader struct {
	Dir string
}

func (l *FSLoader) Load(id string) (*Paradigm, error) {
	path := filepath.Join(l.Dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ParadigmNotFound{ID: id}
		}
		return nil, &ParadigmSchemaError{ID: id, Reason: err.Error()}
	}
	var p Paradigm
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParadigmSchemaError{ID: id, Reason: err.Error()}
	}
	if p.ID == "" {
		p.ID = id
	}
	if err := p.ValidateOutputFormat(); err != nil {
		return nil, err
	}
	return &p, nil
}

// MemLoader is an in-memory Loader useful for tests and for paradigms
// generated at compile time rather than read from disk.
type MemLoader struct {
	Paradigms map[string]*Paradigm
}

func (l *MemLoader) Load(id string) (*Paradigm, error) {
	p, ok := l.Paradigms[id]
	if !ok {
		return nil, &ParadigmNotFound{ID: id}
	}
	return p, nil
}
