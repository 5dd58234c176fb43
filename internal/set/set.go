// Package set provides a generic set datastructure.
package set

import (
	"cmp"
	"slices"
)

type Set[T comparable] map[T]struct{}

func New[T comparable]() Set[T] {
	return Set[T]{}
}

// From returns a set containing all elements of sl.
func From[T comparable](sl []T) Set[T] {
	result := make(Set[T], len(sl))

	for _, elem := range sl {
		result[elem] = struct{}{}
	}

	return result
}

func (s Set[T]) Add(elems ...T) {
	for _, e := range elems {
		s[e] = struct{}{}
	}
}

func (s Set[T]) Contains(elem T) bool {
	_, exist := s[elem]
	return exist
}

func (s Set[T]) Len() int {
	return len(s)
}

func (s Set[T]) IsEmpty() bool {
	return len(s) == 0
}

// Union returns a new set containing the elements of s and other.
func (s Set[T]) Union(other Set[T]) Set[T] {
	result := make(Set[T], len(s)+len(other))

	for e := range s {
		result[e] = struct{}{}
	}

	for e := range other {
		result[e] = struct{}{}
	}

	return result
}

// Difference returns a new set with the elements of s that are not in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	result := make(Set[T], len(s))

	for e := range s {
		if _, exist := other[e]; !exist {
			result[e] = struct{}{}
		}
	}

	return result
}

// Intersection returns a new set with the elements that are in s and other.
func (s Set[T]) Intersection(other Set[T]) Set[T] {
	result := Set[T]{}

	for e := range s {
		if _, exist := other[e]; exist {
			result[e] = struct{}{}
		}
	}

	return result
}

// IsSubset returns true if all elements of s are in other.
func (s Set[T]) IsSubset(other Set[T]) bool {
	for e := range s {
		if _, exist := other[e]; !exist {
			return false
		}
	}

	return true
}

func (s Set[T]) Equal(other Set[T]) bool {
	return len(s) == len(other) && s.IsSubset(other)
}

func (s Set[T]) Slice() []T {
	result := make([]T, 0, len(s))

	for e := range s {
		result = append(result, e)
	}

	return result
}

// Sorted returns the elements of s as a sorted slice.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	result := s.Slice()
	slices.Sort(result)
	return result
}
