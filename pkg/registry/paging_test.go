package registry

import "testing"

func TestGetPagination(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		want       Pagination
	}{
		{"first page", 0, 20, Pagination{From: 0, To: 19}},
		{"third page", 2, 20, Pagination{From: 40, To: 59}},
		{"second page small", 1, 5, Pagination{From: 5, To: 9}},
		{"default size", 1, 0, Pagination{From: 20, To: 39}},
		{"negative page", -3, 10, Pagination{From: 0, To: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPagination(tt.page, tt.size)
			if got != tt.want {
				t.Errorf("GetPagination(%d, %d) = %+v, want %+v", tt.page, tt.size, got, tt.want)
			}
		})
	}
}

func TestGetPaginationWindowSize(t *testing.T) {
	for _, size := range []int{1, 7, 20, 100} {
		prev := -1
		for page := 0; page < 50; page++ {
			p := GetPagination(page, size)
			if p.Limit() != size {
				t.Fatalf("page %d size %d: window %d, want %d", page, size, p.Limit(), size)
			}
			if p.From != prev+1 {
				t.Fatalf("page %d size %d: From = %d, want %d", page, size, p.From, prev+1)
			}
			prev = p.To
		}
	}
}
