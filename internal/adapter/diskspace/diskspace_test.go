package diskspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFree(t *testing.T) {
	free, err := NewChecker().Free(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Positive(t, free)
}

func TestFreeMissingPath(t *testing.T) {
	_, err := NewChecker().Free(context.Background(), "/definitely/not/a/real/path")
	require.Error(t, err)
}
