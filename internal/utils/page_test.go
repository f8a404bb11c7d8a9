package utils_test

import (
	"testing"

	"github.com/booknest/booknest/internal/utils"
)

func TestNewPageResponseFlags(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		size      int
		total     int64
		items     int
		wantPages int
		wantFirst bool
		wantLast  bool
	}{
		{name: "empty", page: 0, size: 10, total: 0, items: 0, wantPages: 0, wantFirst: true, wantLast: true},
		{name: "single_page", page: 0, size: 10, total: 7, items: 7, wantPages: 1, wantFirst: true, wantLast: true},
		{name: "first_of_many", page: 0, size: 10, total: 25, items: 10, wantPages: 3, wantFirst: true, wantLast: false},
		{name: "middle", page: 1, size: 10, total: 25, items: 10, wantPages: 3, wantFirst: false, wantLast: false},
		{name: "last", page: 2, size: 10, total: 25, items: 5, wantPages: 3, wantFirst: false, wantLast: true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			content := make([]int, tt.items)

			resp := utils.NewPageResponse(content, tt.page, tt.size, tt.total)

			if resp.TotalPages != tt.wantPages {
				t.Errorf("totalPages = %d, want %d", resp.TotalPages, tt.wantPages)
			}

			if resp.First != tt.wantFirst {
				t.Errorf("first = %v, want %v", resp.First, tt.wantFirst)
			}

			if resp.Last != tt.wantLast {
				t.Errorf("last = %v, want %v", resp.Last, tt.wantLast)
			}

			if resp.TotalElements != tt.total {
				t.Errorf("totalElements = %d, want %d", resp.TotalElements, tt.total)
			}
		})
	}
}

func TestNewPageResponseNilContent(t *testing.T) {
	resp := utils.NewPageResponse[string](nil, 0, 10, 0)

	if resp.Content == nil {
		t.Fatal("content should be an empty slice, not nil")
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		size     int
		wantPage int
		wantSize int
	}{
		{name: "defaults", page: -1, size: 0, wantPage: 0, wantSize: utils.DefaultPageSize},
		{name: "too_big", page: 2, size: 9999, wantPage: 2, wantSize: utils.MaxPageSize},
		{name: "passthrough", page: 3, size: 25, wantPage: 3, wantSize: 25},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			page, size := utils.ClampPage(tt.page, tt.size)

			if page != tt.wantPage || size != tt.wantSize {
				t.Errorf("ClampPage(%d,%d) = (%d,%d), want (%d,%d)",
					tt.page, tt.size, page, size, tt.wantPage, tt.wantSize)
			}
		})
	}
}
