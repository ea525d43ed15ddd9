// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"sync"
	"testing"
)

func TestShardMapStoreLoadDelete(t *testing.T) {
	m := newShardMap[string]()
	m.Store(1, "one")
	m.Store(2, "two")

	if v, ok := m.Load(1); !ok || v != "one" {
		t.Fatalf("Load(1) = %q, %v", v, ok)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	if v, ok := m.Delete(1); !ok || v != "one" {
		t.Fatalf("Delete(1) = %q, %v", v, ok)
	}
	if _, ok := m.Load(1); ok {
		t.Fatal("Load(1) succeeded after Delete")
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestShardMapConcurrentAccess(t *testing.T) {
	m := newShardMap[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Store(uint64(i), i)
		}(i)
	}
	wg.Wait()

	if m.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", m.Len())
	}

	count := 0
	m.ForEach(func(_ uint64, _ int) { count++ })
	if count != 100 {
		t.Fatalf("ForEach visited %d entries, want 100", count)
	}
}

func TestShardMapForEachInShardPartitionsAllKeys(t *testing.T) {
	m := newShardMap[int]()
	for i := 0; i < 200; i++ {
		m.Store(uint64(i), i)
	}

	seen := 0
	for i := 0; i < m.Shards(); i++ {
		m.ForEachInShard(i, func(_ uint64, _ int) { seen++ })
	}
	if seen != 200 {
		t.Fatalf("shard-by-shard iteration saw %d entries, want 200", seen)
	}
}
