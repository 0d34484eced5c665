package mining

import (
	"fmt"
	"sort"

	"LookTrainer/internal/domain"
)

// Source carries everything an extraction rule may look at.
type Source struct {
	Item   domain.Item
	Reason string
	// Text is the lowercase url + description haystack.
	Text string
}

// Extractor captures a single extraction rule (content keywords, rejection reasons, etc.).
type Extractor interface {
	Name() string
	Extract(src Source) []domain.Pattern
}

// Registry keeps a mapping from extractor names to their implementations.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds a registry from the given extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: map[string]Extractor{}}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces an extractor implementation.
func (r *Registry) Register(extractor Extractor) {
	if r.extractors == nil {
		r.extractors = map[string]Extractor{}
	}
	r.extractors[extractor.Name()] = extractor
}

// Resolve returns an extractor by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Extractor, error) {
	if extractor, ok := r.extractors[name]; ok {
		return extractor, nil
	}
	return nil, fmt.Errorf("extractor %s is not registered", name)
}

// Extract runs every registered rule in name order.
func (r *Registry) Extract(src Source) []domain.Pattern {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)

	var patterns []domain.Pattern
	for _, name := range names {
		patterns = append(patterns, r.extractors[name].Extract(src)...)
	}
	return patterns
}
