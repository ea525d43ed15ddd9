// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "sync"

const shardCount = 32

// shardMap is a fixed-shard concurrent map keyed by uint64, used for both
// the object registry and the root registry (§5: "a concurrent map of
// objects and a concurrent map of roots ... support lock-free insertion").
// A real lock-free map is out of reach in plain Go without unsafe atomic
// tricks the rest of the corpus never reaches for, so insertion here pays
// for a per-shard mutex instead; iteration during sweep takes one shard
// lock at a time rather than a single map-wide lock.
type shardMap[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[uint64]V
}

func newShardMap[V any]() *shardMap[V] {
	sm := &shardMap[V]{}
	for i := range sm.shards {
		sm.shards[i].m = make(map[uint64]V)
	}
	return sm
}

func (s *shardMap[V]) shardFor(key uint64) *shard[V] {
	return &s.shards[key%shardCount]
}

func (s *shardMap[V]) Store(key uint64, value V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.m[key] = value
	sh.mu.Unlock()
}

func (s *shardMap[V]) Load(key uint64) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.m[key]
	sh.mu.RUnlock()
	return v, ok
}

func (s *shardMap[V]) Delete(key uint64) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	v, ok := sh.m[key]
	delete(sh.m, key)
	sh.mu.Unlock()
	return v, ok
}

func (s *shardMap[V]) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		total += len(s.shards[i].m)
		s.shards[i].mu.RUnlock()
	}
	return total
}

// ForEach calls fn for every (key, value) pair, one shard at a time. fn
// must not call back into the same shardMap.
func (s *shardMap[V]) ForEach(fn func(key uint64, value V)) {
	for i := range s.shards {
		s.shards[i].mu.RLock()
		for k, v := range s.shards[i].m {
			fn(k, v)
		}
		s.shards[i].mu.RUnlock()
	}
}

// Shards exposes the underlying shard count so callers (the parallel
// sweep/unmark fan-out) can split work along the same boundaries the map
// already uses, avoiding a second partitioning scheme.
func (s *shardMap[V]) Shards() int { return shardCount }

// ForEachInShard calls fn for every pair in a single shard, taking that
// shard's lock for the duration.
func (s *shardMap[V]) ForEachInShard(i int, fn func(key uint64, value V)) {
	s.shards[i].mu.RLock()
	for k, v := range s.shards[i].m {
		fn(k, v)
	}
	s.shards[i].mu.RUnlock()
}
