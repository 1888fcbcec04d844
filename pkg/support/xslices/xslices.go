// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"cmp"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/exp/constraints"
)

// Keys returns the keys of a map in the form of a slice.
func Keys[K comparable, V any](m map[K]V) []K {
	s := make([]K, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	return s
}

// SortedKeys returns the sorted keys of a map in the form of a slice.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	s := Keys(m)
	slices.Sort(s)
	return s
}

// Product of all the values. The product of an empty slice is 1.
func Product[T constraints.Integer | constraints.Float](values []T) T {
	p := T(1)
	for _, v := range values {
		p *= v
	}
	return p
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// MapParallel executes the given function for every element of `in` with at most `parallelism` goroutines
// (`runtime.NumCPU` if parallelism <= 0). The execution order is not guaranteed, but in the end
// `out[ii] = fn(in[ii])` for every element.
func MapParallel[In, Out any](in []In, parallelism int, fn func(e In) Out) (out []Out) {
	if len(in) <= 1 || parallelism == 1 {
		return Map(in, fn)
	}
	out = make([]Out, len(in))
	goroutines := parallelism
	if goroutines <= 0 {
		goroutines = runtime.NumCPU()
	}
	goroutines = min(goroutines, len(in))
	indices := make(chan int, goroutines)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ii := range indices {
				out[ii] = fn(in[ii])
			}
		}()
	}
	for ii := range in {
		indices <- ii
	}
	close(indices)
	wg.Wait()
	return
}
