package datagrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerPage(t *testing.T) {
	tests := []struct {
		name            string
		method          Method
		throttle        int
		filtered        int
		defaultThrottle int
		want            int
	}{
		{"single uses throttle", MethodSingle, 10, 25, 0, 10},
		{"single falls back to default", MethodSingle, 0, 25, 20, 20},
		{"infinite uses throttle", MethodInfinite, 15, 25, 0, 15},
		{"group counts groups", MethodGroup, 10, 95, 0, 10},
		{"group rounds up", MethodGroup, 10, 91, 0, 10},
		{"group without throttle", MethodGroup, 0, 95, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PerPage(tt.method, tt.throttle, tt.filtered, tt.defaultThrottle))
		})
	}
}

func TestRegular(t *testing.T) {
	tests := []struct {
		name      string
		resp      Response
		pageIndex int
		wantStart int
		wantLimit int
	}{
		{
			name:      "third page of a short last page",
			resp:      Response{Method: MethodSingle, Throttle: 10, Total: 25, Filtered: 25},
			pageIndex: 3,
			wantStart: 21,
			wantLimit: 25,
		},
		{
			name:      "first page",
			resp:      Response{Method: MethodSingle, Throttle: 10, Total: 25, Filtered: 25},
			pageIndex: 1,
			wantStart: 1,
			wantLimit: 10,
		},
		{
			name:      "first page shorter than throttle",
			resp:      Response{Method: MethodSingle, Throttle: 10, Total: 4, Filtered: 4},
			pageIndex: 1,
			wantStart: 1,
			wantLimit: 4,
		},
		{
			name:      "middle page",
			resp:      Response{Method: MethodSingle, Throttle: 10, Total: 100, Filtered: 100},
			pageIndex: 2,
			wantStart: 11,
			wantLimit: 20,
		},
		{
			name:      "no results",
			resp:      Response{Method: MethodSingle, Throttle: 10},
			pageIndex: 1,
			wantStart: 0,
			wantLimit: 0,
		},
		{
			name:      "threshold above filtered",
			resp:      Response{Method: MethodSingle, Throttle: 10, Total: 100, Filtered: 40, Threshold: 50},
			pageIndex: 2,
			wantStart: 11,
			wantLimit: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Regular(tt.resp, tt.pageIndex, 10, 0, 0)
			assert.Equal(t, tt.wantStart, v.PageStart, "pageStart")
			assert.Equal(t, tt.wantLimit, v.PageLimit, "pageLimit")
		})
	}
}

func TestRegularGroupPages(t *testing.T) {
	v := Regular(Response{Method: MethodGroup, Throttle: 10, Filtered: 95, Total: 95}, 1, 10, 0, 0)
	assert.Equal(t, 10, v.PerPage)
}

func TestInfinite(t *testing.T) {
	assert.Nil(t, Infinite(3, nil, 3))

	v := Infinite(1, intp(2), 3)
	require.NotNil(t, v)
	assert.True(t, v.Infinite)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 3, v.Pages)
}

func TestBuildPaginationUsesGridMethod(t *testing.T) {
	r := Response{Page: 1, Pages: 2, NextPage: intp(2), Throttle: 10, Filtered: 20, Total: 20}

	assert.True(t, BuildPagination(MethodInfinite, r, 1, 10, 0, 10).Infinite)
	assert.Equal(t, 10, BuildPagination(MethodSingle, r, 1, 10, 0, 10).PageLimit)
}
