package utils

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestRandomSubset(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}

	picked := RandomSubset(rand.New(rand.NewSource(7)), items, 4)
	if len(picked) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(picked))
	}
	seen := make(map[string]bool)
	for _, p := range picked {
		if seen[p] {
			t.Fatalf("Item %s picked more than once", p)
		}
		seen[p] = true
		if CountFunc(items, func(s string) bool { return s == p }) != 1 {
			t.Fatalf("Item %s is not in the input", p)
		}
	}

	again := RandomSubset(rand.New(rand.NewSource(7)), items, 4)
	if !reflect.DeepEqual(picked, again) {
		t.Errorf("Expected the same subset for the same seed, got %v and %v", picked, again)
	}

	if all := RandomSubset(rand.New(rand.NewSource(1)), items, 10); len(all) != len(items) {
		t.Errorf("Expected %d items, got %d", len(items), len(all))
	}
}

func TestMap(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(i int) int { return i * 2 })
	if !reflect.DeepEqual(doubled, []int{2, 4, 6}) {
		t.Errorf("unexpected map result %v", doubled)
	}
}

func TestCountFuncMax(t *testing.T) {
	if n := CountFunc([]int{1, 2, 3, 4, 5}, func(i int) bool { return i > 2 }); n != 3 {
		t.Errorf("Expected 3, got %d", n)
	}
	if m := Max([]int{3, 10, 5}); m != 10 {
		t.Errorf("Expected 10, got %d", m)
	}
	if m := Max([]int32{-4, -2}); m != -2 {
		t.Errorf("Expected -2, got %d", m)
	}
	if m := Max([]int(nil)); m != 0 {
		t.Errorf("Expected 0 for no items, got %d", m)
	}
}
