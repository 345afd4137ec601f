package utils

import (
	"math/rand"
)

func Map[T any, O any](items []T, f func(T) O) []O {
	mapped := make([]O, len(items))
	for i, item := range items {
		mapped[i] = f(item)
	}
	return mapped
}

func CountFunc[T any](items []T, condition func(T) bool) int {
	n := 0
	for _, item := range items {
		if condition(item) {
			n++
		}
	}
	return n
}

// Max returns the largest item, or the zero value for an empty slice.
func Max[T int | int32 | int64 | float64](items []T) T {
	var max T
	for i, item := range items {
		if i == 0 || item > max {
			max = item
		}
	}
	return max
}

// RandomSubset picks n distinct items in random order. It returns all of them,
// shuffled, when n >= len(items).
func RandomSubset[T any](r *rand.Rand, items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	picked := make([]T, n)
	for i, j := range r.Perm(len(items))[:n] {
		picked[i] = items[j]
	}
	return picked
}
