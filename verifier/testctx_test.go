// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

// fakeContext is a tiny, explicit class hierarchy for tests: it never
// consults a real classloader, matching the verifier's external
// collaborator boundary (§6).
type fakeContext struct {
	// superOf maps a class to its direct superclass. Every class
	// implicitly reaches "java/lang/Object".
	superOf map[string]string
	// interfacesOf maps a class to the interfaces it directly implements.
	interfacesOf map[string][]string
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		superOf: map[string]string{
			"java/lang/Object":   "",
			"java/lang/Number":   "java/lang/Object",
			"java/lang/Integer":  "java/lang/Number",
			"java/lang/Long":     "java/lang/Number",
			"Animal":             "java/lang/Object",
			"Dog":                "Animal",
			"Cat":                "Animal",
			"java/lang/Exception": "java/lang/Throwable",
			"java/lang/Throwable": "java/lang/Object",
			"java/lang/RuntimeException": "java/lang/Exception",
		},
	}
}

func (c *fakeContext) IsSubclass(sub, sup string) bool {
	if sub == sup {
		return true
	}
	for cur := sub; cur != ""; {
		next, ok := c.superOf[cur]
		if !ok {
			next = "java/lang/Object"
		}
		if next == sup {
			return true
		}
		if next == cur || next == "" {
			break
		}
		cur = next
	}
	return sup == "java/lang/Object"
}

func (c *fakeContext) IsAssignable(target, source string) bool {
	return c.IsSubclass(source, target)
}

func (c *fakeContext) CommonSuperclass(a, b string) string {
	if a == b {
		return a
	}
	ancestors := map[string]bool{}
	for cur := a; ; {
		ancestors[cur] = true
		if cur == "java/lang/Object" {
			break
		}
		next, ok := c.superOf[cur]
		if !ok || next == "" {
			next = "java/lang/Object"
		}
		cur = next
	}
	for cur := b; ; {
		if ancestors[cur] {
			return cur
		}
		if cur == "java/lang/Object" {
			return "java/lang/Object"
		}
		next, ok := c.superOf[cur]
		if !ok || next == "" {
			next = "java/lang/Object"
		}
		cur = next
	}
}
