package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{name: "no lessons", completed: 0, total: 0, want: 0},
		{name: "negative total", completed: 3, total: -1, want: 0},
		{name: "nothing done", completed: 0, total: 5, want: 0},
		{name: "one of three rounds up", completed: 1, total: 3, want: 33},
		{name: "two of three rounds up", completed: 2, total: 3, want: 67},
		{name: "half", completed: 2, total: 4, want: 50},
		{name: "all done", completed: 5, total: 5, want: 100},
		{name: "capped at hundred", completed: 7, total: 5, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressPercentage(tt.completed, tt.total))
		})
	}
}

func TestIsComplete(t *testing.T) {
	assert.False(t, IsComplete(99))
	assert.True(t, IsComplete(100))
}
