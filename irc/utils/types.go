// Copyright (c) 2020 Shivaram Lingamneni
// released under the MIT license

package utils

import "sort"

type empty struct{}

type HashSet[T comparable] map[T]empty

func (s HashSet[T]) Has(elem T) bool {
	_, ok := s[elem]
	return ok
}

func (s HashSet[T]) Add(elem T) {
	s[elem] = empty{}
}

// AddNew adds `elem`, returning false if it was already present.
func (s HashSet[T]) AddNew(elem T) (added bool) {
	if _, ok := s[elem]; ok {
		return false
	}
	s[elem] = empty{}
	return true
}

func (s HashSet[T]) Remove(elem T) {
	delete(s, elem)
}

// Pop removes `elem`, returning whether it was present.
func (s HashSet[T]) Pop(elem T) (removed bool) {
	_, removed = s[elem]
	delete(s, elem)
	return
}

func (s HashSet[T]) Copy() (result HashSet[T]) {
	result = make(HashSet[T], len(s))
	for elem := range s {
		result[elem] = empty{}
	}
	return
}

func CopyMap[K comparable, V any](input map[K]V) (result map[K]V) {
	result = make(map[K]V, len(input))
	for key, value := range input {
		result[key] = value
	}
	return
}

// SortedKeys returns the keys of a string-keyed map in lexical order.
func SortedKeys[V any](input map[string]V) (result []string) {
	result = make([]string, 0, len(input))
	for key := range input {
		result = append(result, key)
	}
	sort.Strings(result)
	return
}
