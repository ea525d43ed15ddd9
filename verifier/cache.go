// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ristretto-jvm/ristretto/classfile"
)

// decodeKey identifies one method's decoded StackMapTable for caching:
// re-verifying the same method (common when a class is loaded more than
// once, or during incremental recompilation tooling) skips re-decoding.
type decodeKey struct {
	class      string
	method     string
	descriptor string
}

// DecodeCache memoizes DecodeStackMapTable results across Verify calls.
// It is safe for concurrent use; golang-lru's Cache is internally locked.
type DecodeCache struct {
	entries *lru.Cache[decodeKey, DecodedStackMapTable]
}

// NewDecodeCache builds a cache holding up to size decoded tables. A
// size of 0 disables caching: every lookup misses and put is a no-op.
func NewDecodeCache(size int) (*DecodeCache, error) {
	if size <= 0 {
		return &DecodeCache{}, nil
	}
	c, err := lru.New[decodeKey, DecodedStackMapTable](size)
	if err != nil {
		return nil, err
	}
	return &DecodeCache{entries: c}, nil
}

func (d *DecodeCache) get(class string, m classfile.Method) (DecodedStackMapTable, bool) {
	if d == nil || d.entries == nil {
		return DecodedStackMapTable{}, false
	}
	return d.entries.Get(decodeKey{class: class, method: m.Name, descriptor: m.Descriptor})
}

func (d *DecodeCache) put(class string, m classfile.Method, table DecodedStackMapTable) {
	if d == nil || d.entries == nil {
		return
	}
	d.entries.Add(decodeKey{class: class, method: m.Name, descriptor: m.Descriptor}, table)
}
