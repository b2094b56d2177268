package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareStreamIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1-0", "1-0", 0},
		{"1-0", "2-0", -1},
		{"10-0", "9-5", 1},
		{"1700000000000-2", "1700000000000-10", -1},
		{"0-0", "0-1", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, compareStreamIDs(tt.a, tt.b))
		})
	}
}
