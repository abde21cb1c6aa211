package models

import (
	"errors"
	"testing"
)

func TestBookQueryFilter(t *testing.T) {
	ten := 10.0

	tests := []struct {
		name       string
		query      BookQuery
		wantErr    bool
		wantOffset int
		wantLimit  int
		wantPrice  *PriceFilter
	}{
		{
			name:       "defaults",
			query:      BookQuery{},
			wantOffset: 0,
			wantLimit:  30,
		},
		{
			name:       "third page",
			query:      BookQuery{Page: 3, Limit: 10},
			wantOffset: 20,
			wantLimit:  10,
		},
		{
			name:    "price without type",
			query:   BookQuery{Price: &ten},
			wantErr: true,
		},
		{
			name:    "type without price",
			query:   BookQuery{PriceFilterType: "equal"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			query:   BookQuery{Price: &ten, PriceFilterType: "around"},
			wantErr: true,
		},
		{
			name:    "negative page",
			query:   BookQuery{Page: -1},
			wantErr: true,
		},
		{
			name:       "equal price",
			query:      BookQuery{Price: &ten, PriceFilterType: "equal"},
			wantLimit:  30,
			wantPrice:  &PriceFilter{Type: PriceEqual, Value: 10},
			wantOffset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tt.query.Filter()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filter.Offset != tt.wantOffset || filter.Limit != tt.wantLimit {
				t.Fatalf("offset/limit = %d/%d, want %d/%d", filter.Offset, filter.Limit, tt.wantOffset, tt.wantLimit)
			}
			if (filter.Price == nil) != (tt.wantPrice == nil) {
				t.Fatalf("price filter = %+v, want %+v", filter.Price, tt.wantPrice)
			}
			if tt.wantPrice != nil && *filter.Price != *tt.wantPrice {
				t.Fatalf("price filter = %+v, want %+v", *filter.Price, *tt.wantPrice)
			}
		})
	}
}
