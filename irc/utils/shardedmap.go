// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package utils

import (
	"hash/maphash"
	"sync"
)

const numShards = 32

type shardedEntry[T any] struct {
	sync.RWMutex
	value T
	// set under the entry lock when the entry leaves the map; a handle
	// acquired after lookup but before removal sees it and backs off
	removed bool
}

type shard[T any] struct {
	sync.RWMutex // tier 2
	entries      map[string]*shardedEntry[T]
}

// ShardedMap is a concurrent string-keyed map that hands out scoped
// shared or exclusive access to one entry at a time. Shard locks are held
// only for the map operation itself; the per-entry lock (tier 1) is held for
// the duration of a Read or Write callback. RemoveIf takes the shard lock
// while holding the entry lock; nothing takes an entry lock while holding a
// shard lock.
type ShardedMap[T any] struct {
	seed   maphash.Seed
	shards [numShards]shard[T]
}

// NewShardedMap returns a new, empty ShardedMap.
func NewShardedMap[T any]() *ShardedMap[T] {
	m := &ShardedMap[T]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]*shardedEntry[T])
	}
	return m
}

func (m *ShardedMap[T]) shardIndex(key string) uint64 {
	return maphash.String(m.seed, key) % numShards
}

func (m *ShardedMap[T]) shardFor(key string) *shard[T] {
	return &m.shards[m.shardIndex(key)]
}

func (m *ShardedMap[T]) lookup(key string) *shardedEntry[T] {
	s := m.shardFor(key)
	s.RLock()
	defer s.RUnlock()
	return s.entries[key]
}

// Read runs fn with shared access to the entry for key. It returns false
// if there is no such entry.
func (m *ShardedMap[T]) Read(key string, fn func(T)) bool {
	e := m.lookup(key)
	if e == nil {
		return false
	}
	e.RLock()
	defer e.RUnlock()
	if e.removed {
		return false
	}
	fn(e.value)
	return true
}

// Write runs fn with exclusive access to the entry for key. It returns false
// if there is no such entry.
func (m *ShardedMap[T]) Write(key string, fn func(T)) bool {
	e := m.lookup(key)
	if e == nil {
		return false
	}
	e.Lock()
	defer e.Unlock()
	if e.removed {
		return false
	}
	fn(e.value)
	return true
}

// Get returns the value stored for key without holding its entry lock.
// The caller is responsible for synchronizing any access to the value.
func (m *ShardedMap[T]) Get(key string) (value T, ok bool) {
	e := m.lookup(key)
	if e == nil {
		return
	}
	return e.value, true
}

// Has returns whether an entry exists for key.
func (m *ShardedMap[T]) Has(key string) bool {
	return m.lookup(key) != nil
}

// Insert stores value under key if no entry exists yet, returning whether
// it was stored.
func (m *ShardedMap[T]) Insert(key string, value T) (inserted bool) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()
	if _, ok := s.entries[key]; ok {
		return false
	}
	s.entries[key] = &shardedEntry[T]{value: value}
	return true
}

// LoadOrCreate returns the existing value for key, or stores and returns
// the result of create. `created` reports which happened.
func (m *ShardedMap[T]) LoadOrCreate(key string, create func() T) (value T, created bool) {
	value, created, _ = m.LoadOrTryCreate(key, func() (T, error) {
		return create(), nil
	})
	return
}

// LoadOrTryCreate is LoadOrCreate for fallible constructors: if create
// fails, nothing is stored and its error is returned. create runs under the
// shard lock, so it is atomic with respect to the deletion step of RemoveIf
// on the same key, and must not take entry locks of this map.
func (m *ShardedMap[T]) LoadOrTryCreate(key string, create func() (T, error)) (value T, created bool, err error) {
	if e := m.lookup(key); e != nil {
		return e.value, false, nil
	}
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.value, false, nil
	}
	value, err = create()
	if err != nil {
		return
	}
	s.entries[key] = &shardedEntry[T]{value: value}
	return value, true, nil
}

// Remove deletes the entry for key, waiting for any outstanding handle on it.
func (m *ShardedMap[T]) Remove(key string) (value T, removed bool) {
	return m.RemoveIf(key, func(T) bool { return true })
}

// RemoveIf runs fn with exclusive access to the entry for key and deletes
// the entry if fn returns true. The check and the deletion are atomic with
// respect to every other Read, Write and RemoveIf on the same key. The
// shard lock is only taken for the deletion itself.
func (m *ShardedMap[T]) RemoveIf(key string, fn func(T) bool) (value T, removed bool) {
	s := m.shardFor(key)
	for {
		e := m.lookup(key)
		if e == nil {
			return
		}
		e.Lock()
		if e.removed {
			// lost a race with another removal; key may hold a new entry
			e.Unlock()
			continue
		}
		value = e.value
		if fn(value) {
			e.removed = true
			s.Lock()
			delete(s.entries, key)
			s.Unlock()
			removed = true
		}
		e.Unlock()
		return
	}
}

// Len returns the number of entries. It is only a snapshot.
func (m *ShardedMap[T]) Len() (result int) {
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		result += len(s.entries)
		s.RUnlock()
	}
	return
}

// Keys returns a snapshot of every key in the map.
func (m *ShardedMap[T]) Keys() (result []string) {
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		for key := range s.entries {
			result = append(result, key)
		}
		s.RUnlock()
	}
	return
}

// Values returns a snapshot of every value in the map.
func (m *ShardedMap[T]) Values() (result []T) {
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		for _, e := range s.entries {
			result = append(result, e.value)
		}
		s.RUnlock()
	}
	return
}
