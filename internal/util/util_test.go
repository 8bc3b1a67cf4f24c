package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimExt(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"foo.zip", "foo"},
		{"downloaded/foo.zip", "foo"},
		{"map.tar.gz", "map.tar"},
		{"noext", "noext"},
		{"dm_arena.bsp.bz2", "dm_arena.bsp"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.expected, TrimExt(tc.in))
		})
	}
}
