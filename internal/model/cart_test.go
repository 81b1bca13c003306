package model

import "testing"

func TestCartCost(t *testing.T) {
	cases := []struct {
		name  string
		costs []uint32
		want  uint32
	}{
		{"empty cart", nil, 0},
		{"single item", []uint32{5000}, 5000},
		{"several items", []uint32{5000, 3000, 4000, 2000}, 14000},
		{"free course", []uint32{0, 2500}, 2500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := make([]CartItem, 0, len(tc.costs))
			for i, cost := range tc.costs {
				items = append(items, CartItem{ID: uint64(i + 1), CostCents: cost})
			}
			if got := CartCost(items); got != tc.want {
				t.Fatalf("CartCost = %d, want %d", got, tc.want)
			}
		})
	}
}
