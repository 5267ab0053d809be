package slice

import (
	"cmp"
	"slices"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

func Map[T any, U any](input []T, fn func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = fn(v)
	}
	return result
}

func Filter[T any](input []T, pred func(T) bool) []T {
	result := make([]T, 0, len(input))
	for _, v := range input {
		if pred(v) {
			result = append(result, v)
		}
	}
	return result
}

// SortBy returns a sorted copy of input ordered by key. The sort is stable,
// elements with equal keys keep their original order in both directions.
func SortBy[T any, K cmp.Ordered](input []T, key func(T) K, dir Direction) []T {
	result := slices.Clone(input)
	slices.SortStableFunc(result, func(a, b T) int {
		c := cmp.Compare(key(a), key(b))
		if dir == Desc {
			return -c
		}
		return c
	})
	return result
}
