package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetector(t *testing.T) {
	bodies := []string{"A", "A", "B", "B", "A"}

	tests := []struct {
		name        string
		initTrigger bool
		want        []bool
	}{
		{"without init trigger", false, []bool{false, false, true, false, true}},
		{"with init trigger", true, []bool{true, false, true, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.initTrigger)
			got := make([]bool, 0, len(bodies))
			for _, b := range bodies {
				got = append(got, d.Observe(b))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetector_EmptyBodyIsNotAbsent(t *testing.T) {
	d := NewDetector(false)
	assert.False(t, d.Observe(""))
	assert.True(t, d.Observe("x"))
	assert.True(t, d.Observe(""))
	assert.False(t, d.Observe(""))
}
