package session

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"opguide/internal/domain"
)

var ErrUnknownTypes = errors.New("unknown resource types")

// Session holds the state of one user flow: the last fetched resources, the
// selected types and the summaries built from them. Every change to the
// resources or the selection drops the summaries.
type Session struct {
	key string

	mu         sync.Mutex
	generation uint64
	resources  []domain.Resource
	types      map[string]struct{}
	selected   []string
	summaries  map[string]domain.GroupSummary
}

// Snapshot is a consistent copy of the inputs needed to summarize.
type Snapshot struct {
	Generation uint64
	Resources  []domain.Resource
	Selected   []string
}

func New(key string) *Session {
	return &Session{key: key}
}

func (s *Session) Key() string {
	return s.key
}

// SetResources replaces the resource set and clears selection and summaries.
func (s *Session) SetResources(resources []domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.resources = slices.Clone(resources)
	s.types = make(map[string]struct{}, len(resources))
	for _, r := range resources {
		s.types[r.Type] = struct{}{}
	}
	s.selected = nil
	s.summaries = nil
}

func (s *Session) Resources() []domain.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.resources)
}

// Types returns the distinct types of the fetched resources, sorted.
func (s *Session) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Sorted(maps.Keys(s.types))
}

// Select replaces the selection and clears summaries. Every type must be
// present in the fetched resources. Duplicates are collapsed.
func (s *Session) Select(types []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unknown []string
	for _, t := range types {
		if _, ok := s.types[t]; !ok {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %q", ErrUnknownTypes, unknown)
	}

	selected := slices.Clone(types)
	slices.Sort(selected)

	s.generation++
	s.selected = slices.Compact(selected)
	s.summaries = nil

	return nil
}

// Toggle adds or removes one type from the selection and clears summaries.
func (s *Session) Toggle(resourceType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[resourceType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTypes, []string{resourceType})
	}

	selected := slices.Clone(s.selected)
	if i := slices.Index(selected, resourceType); i >= 0 {
		selected = slices.Delete(selected, i, i+1)
	} else {
		selected = append(selected, resourceType)
		slices.Sort(selected)
	}

	s.generation++
	s.selected = selected
	s.summaries = nil

	return nil
}

// Generation changes on every fetch and selection change.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.selected)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Generation: s.generation,
		Resources:  slices.Clone(s.resources),
		Selected:   slices.Clone(s.selected),
	}
}

// SetSummaries stores summaries computed from the snapshot with the given
// generation. It reports false and stores nothing when the resources or the
// selection changed in the meantime.
func (s *Session) SetSummaries(generation uint64, summaries map[string]domain.GroupSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}

	s.summaries = maps.Clone(summaries)
	return true
}

// Summaries returns the last summaries, or nil when there are none.
func (s *Session) Summaries() map[string]domain.GroupSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.summaries)
}
