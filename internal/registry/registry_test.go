package registry

import (
	"testing"

	"custody-vault/internal/domain"
)

func TestRegistry_AddAndContains(t *testing.T) {
	r := New()

	if !r.Add("tokenA") {
		t.Error("first Add returned false")
	}
	if r.Add("tokenA") {
		t.Error("duplicate Add returned true")
	}
	if !r.Contains("tokenA") {
		t.Error("Contains(tokenA) = false after Add")
	}
	if r.Contains("tokenB") {
		t.Error("Contains(tokenB) = true, never added")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_SwapRemove(t *testing.T) {
	r := New()
	r.Add("tokenA")
	r.Add("tokenB")

	if !r.Remove("tokenA") {
		t.Fatal("Remove(tokenA) = false")
	}

	// Swap-remove may reorder but must not duplicate or drop tokenB.
	list := r.List()
	if len(list) != 1 || list[0] != "tokenB" {
		t.Errorf("List = %v, want [tokenB]", list)
	}
	if r.Contains("tokenA") {
		t.Error("tokenA still present after Remove")
	}
}

func TestRegistry_RemoveMissing(t *testing.T) {
	r := New()
	r.Add("tokenA")
	r.Remove("tokenA")

	if r.Remove("tokenA") {
		t.Error("second Remove returned true")
	}
}

func TestRegistry_OrderMatchesSet(t *testing.T) {
	r := New()
	ids := []domain.TokenID{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		r.Add(id)
	}
	r.Remove("b")
	r.Remove("e")
	r.Add("f")

	// order must contain exactly the supported elements, no duplicates.
	list := r.List()
	seen := make(map[domain.TokenID]int)
	for _, id := range list {
		seen[id]++
	}
	want := []domain.TokenID{"a", "c", "d", "f"}
	if len(list) != len(want) {
		t.Fatalf("List length = %d, want %d (%v)", len(list), len(want), list)
	}
	for _, id := range want {
		if seen[id] != 1 {
			t.Errorf("token %s appears %d times in %v, want once", id, seen[id], list)
		}
		if !r.Contains(id) {
			t.Errorf("Contains(%s) = false", id)
		}
	}
}

func TestFromList(t *testing.T) {
	r := FromList([]domain.TokenID{"a", "b", "a", ""})

	list := r.List()
	if len(list) != 2 {
		t.Errorf("List = %v, want 2 unique non-zero entries", list)
	}
	if !r.Contains("a") || !r.Contains("b") {
		t.Error("restored registry missing entries")
	}
}

func TestRegistry_ListIsCopy(t *testing.T) {
	r := New()
	r.Add("tokenA")

	list := r.List()
	list[0] = "mutated"

	if got := r.List()[0]; got != "tokenA" {
		t.Errorf("internal order mutated through List copy: %s", got)
	}
}
