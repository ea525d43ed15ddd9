// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ristretto-verify runs the bytecode verifier over every method
// of a single classfile, reporting the first fatal error per method.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"

	"github.com/ristretto-jvm/ristretto/internal/classreader"
	"github.com/ristretto-jvm/ristretto/verifier"
)

func main() {
	log.SetPrefix("ristretto-verify: ")
	log.SetFlags(0)

	verbose := flag.Bool("v", false, "enable verifier debug logging")
	strict := flag.Bool("strict", false, "reject methods with branches but no StackMapTable instead of falling back")
	trace := flag.Bool("trace", false, "print fast-path fallback decisions")

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	verifier.Debug = *verbose

	exitCode := 0
	for _, path := range flag.Args() {
		if err := verifyFile(path, *strict, *trace); err != nil {
			log.Printf("%s: %v", path, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func verifyFile(path string, strict, trace bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	defer data.Unmap()

	cf, err := classreader.Read(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("could not read classfile: %w", err)
	}

	cache, err := verifier.NewDecodeCache(256)
	if err != nil {
		return fmt.Errorf("could not build decode cache: %w", err)
	}
	cfg := verifier.Config{StrictStackMapRequired: strict, Trace: trace}
	ctx := openWorldContext{}

	var g errgroup.Group
	results := make([]error, len(cf.Methods))
	for i, m := range cf.Methods {
		i, m := i, m
		g.Go(func() error {
			outcome, err := verifier.Verify(cf, m, ctx, cfg, cache)
			if err != nil {
				results[i] = err
				return nil // collect all method errors rather than aborting the group
			}
			if trace && outcome.Trace != nil {
				for _, ev := range outcome.Trace.Events {
					log.Printf("%s%s: pc=%d: %s", m.Name, m.Descriptor, ev.Offset, ev.Reason)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := false
	for i, err := range results {
		if err != nil {
			failed = true
			log.Printf("%s: %v", cf.Methods[i].Name+cf.Methods[i].Descriptor, err)
		}
	}
	if failed {
		return fmt.Errorf("%s failed verification", cf.ThisClass)
	}
	fmt.Printf("%s: %d methods OK\n", cf.ThisClass, len(cf.Methods))
	return nil
}

