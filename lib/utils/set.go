package utils

import (
	"sync"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

type Set[T constraints.Ordered] struct {
	mu  *sync.Mutex
	set []T
}

func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.set)
}

func (s *Set[T]) Has(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := slices.BinarySearch(s.set, v)

	return found
}

// Set adds v and reports whether it was new.
func (s *Set[T]) Set(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, found := slices.BinarySearch(s.set, v)
	if found {
		return false
	}

	s.set = slices.Insert(s.set, i, v)

	return true
}

func NewSet[T constraints.Ordered]() *Set[T] {
	return &Set[T]{
		mu: new(sync.Mutex),
	}
}
