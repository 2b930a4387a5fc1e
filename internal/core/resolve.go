package core

import (
	"fmt"
	"strings"
)

// Candidate is a stored entity a natural key may refer to.
type Candidate struct {
	ID   string
	Name string
	Code string
}

// Lookup resolves natural keys (name or code) to internal IDs. It is built
// once per batch and read-only afterwards, so one Lookup may be shared by
// goroutines.
type Lookup struct {
	entity string
	ids    map[string]string
}

// ResolutionError is a natural key that matched no candidate.
type ResolutionError struct {
	Entity string
	Value  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Entity, e.Value)
}

func naturalKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewLookup indexes candidates by name and by code. Codes are registered
// first, so a code wins over another entity's identical name. When required
// is set and there are no candidates at all, the whole batch fails with a
// *PreconditionError.
func NewLookup(entity string, candidates []Candidate, required bool) (*Lookup, error) {
	if required && len(candidates) == 0 {
		return nil, &PreconditionError{
			Entity: entity,
			Msg:    fmt.Sprintf("no %ss registered for this professor", entity),
		}
	}

	l := &Lookup{entity: entity, ids: make(map[string]string, 2*len(candidates))}
	for _, c := range candidates {
		if k := naturalKey(c.Code); k != "" {
			l.ids[k] = c.ID
		}
	}
	for _, c := range candidates {
		k := naturalKey(c.Name)
		if k == "" {
			continue
		}
		if _, taken := l.ids[k]; !taken {
			l.ids[k] = c.ID
		}
	}
	return l, nil
}

// Resolve returns the ID registered for value.
func (l *Lookup) Resolve(value string) (string, error) {
	if id, ok := l.ids[naturalKey(value)]; ok {
		return id, nil
	}
	return "", &ResolutionError{Entity: l.entity, Value: strings.TrimSpace(value)}
}

// Len is the number of registered keys.
func (l *Lookup) Len() int { return len(l.ids) }

func courseCandidates(cs []Course) []Candidate {
	out := make([]Candidate, len(cs))
	for i, c := range cs {
		out[i] = Candidate{ID: c.ID, Name: c.Name, Code: c.Code}
	}
	return out
}

func subjectCandidates(ss []Subject) []Candidate {
	out := make([]Candidate, len(ss))
	for i, s := range ss {
		out[i] = Candidate{ID: s.ID, Name: s.Name, Code: s.Code}
	}
	return out
}

// studentCandidates registers only the institutional ID.
func studentCandidates(ss []Student) []Candidate {
	out := make([]Candidate, len(ss))
	for i, s := range ss {
		out[i] = Candidate{ID: s.ID, Code: s.StudentID}
	}
	return out
}
