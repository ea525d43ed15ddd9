// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

// Config controls the fast path's fallback policy, per §4.4/§4.6.
type Config struct {
	// StrictStackMapRequired, when true, fails verification outright
	// (rather than falling back to InferenceVerifier) when a classfile
	// version >= 50 method with control flow has no StackMapTable, or
	// when a merge point lacks a stackmap entry.
	StrictStackMapRequired bool
	// Trace, when true, records a VerificationTrace explaining fallback
	// decisions (§4's "Supplemented Features").
	Trace bool
}

// DefaultConfig matches real JVM verifier behavior: fall back to
// inference rather than rejecting classes compiled without debug
// stackmaps.
var DefaultConfig = Config{StrictStackMapRequired: false}

// Trace is a diagnostic record of why the fast path could not complete
// single-pass, surfaced regardless of pass/fail outcome when Config.Trace
// is set.
type Trace struct {
	Events []TraceEvent
}

// TraceEvent records one fallback-relevant decision point.
type TraceEvent struct {
	Offset int
	Reason string
}

func (t *Trace) record(offset int, reason string) {
	if t == nil {
		return
	}
	t.Events = append(t.Events, TraceEvent{Offset: offset, Reason: reason})
}
