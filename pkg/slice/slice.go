// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package slice complements the standard [slices] package with the generic
helpers used around catalog batching.

Key Functions:
  - Map: Projects every element through a function.
  - Chunk: Splits a slice into consecutive blocks of a bounded size.
*/
package slice

// Map maps a slice of type T to a slice of type U using the provided transformation function.
// A nil input yields an empty, non-nil slice.
func Map[T any, U any](input []T, transform func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = transform(v)
	}
	return result
}

// Chunk splits input into consecutive blocks of at most size elements.
//
// Blocks share the backing array of input. A size below one yields a single
// block holding everything; an empty input yields no blocks.
func Chunk[T any](input []T, size int) [][]T {
	if len(input) == 0 {
		return nil
	}
	if size < 1 {
		size = len(input)
	}

	blocks := make([][]T, 0, (len(input)+size-1)/size)
	for start := 0; start < len(input); start += size {
		blocks = append(blocks, input[start:min(start+size, len(input)):min(start+size, len(input))])
	}
	return blocks
}
