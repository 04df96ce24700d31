package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=50&offset=10", 50, 10},
		{"?limit=500", MaxLimit, 0},
		{"?offset=-5", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
		{"?page=3&page_size=10", 10, 20},
		{"?page=2", DefaultLimit, DefaultLimit},
		{"?page=2&page_size=1000", MaxLimit, MaxLimit},
		{"?page=0&page_size=5", 5, 0},
		{"?limit=5&page=4", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := paramsFor(t, tt.query)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d",
					p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 2})
	if !resp.HasMore {
		t.Error("expected more results")
	}
	if resp.NextOffset == nil || *resp.NextOffset != 4 {
		t.Errorf("expected next offset 4, got %v", resp.NextOffset)
	}

	last := NewResponse([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore || last.NextOffset != nil {
		t.Errorf("expected final page, got %+v", last)
	}
}
