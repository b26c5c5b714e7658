package datagrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsEncode(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{
			name:   "bare page",
			params: Params{Page: 1, Method: MethodSingle},
			want:   "page=1&method=single",
		},
		{
			name: "all fields in order",
			params: Params{
				Filters: []FilterParam{
					{Column: "status", Value: "open"},
					{Value: "ada"},
				},
				Page:      2,
				Method:    MethodGroup,
				Threshold: 5,
				Throttle:  25,
				Sort:      []Sort{{Column: "name", Direction: Desc}},
				Download:  "csv",
			},
			want: "filters%5B0%5D%5Bstatus%5D=open&filters%5B1%5D=ada&page=2&method=group&threshold=5&throttle=25" +
				"&sort%5B0%5D%5Bcolumn%5D=name&sort%5B0%5D%5Bdirection%5D=desc&download=csv",
		},
		{
			name:   "values are escaped",
			params: Params{Filters: []FilterParam{{Column: "total", Value: "|>=100|"}}, Page: 1, Method: MethodInfinite},
			want:   "filters%5B0%5D%5Btotal%5D=%7C%3E%3D100%7C&page=1&method=infinite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.Encode())
		})
	}
}

func TestSignatureIgnoresDownload(t *testing.T) {
	p := Params{Page: 3, Method: MethodSingle}
	q := p
	q.Download = "xlsx"

	assert.Equal(t, p.signature(), q.signature())
	assert.NotEqual(t, p.Encode(), q.Encode())
}

func TestJoinQuery(t *testing.T) {
	assert.Equal(t, "/api?page=1", joinQuery("/api", "page=1"))
	assert.Equal(t, "/api?key=x&page=1", joinQuery("/api?key=x", "page=1"))
	assert.Equal(t, "/api", joinQuery("/api", ""))
}
