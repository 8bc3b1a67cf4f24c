package diskspace

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

type checker struct{}

func NewChecker() *checker {
	return &checker{}
}

// Free returns the bytes available to unprivileged users on the filesystem holding path.
func (c *checker) Free(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("cannot get disk usage of %s: %w", path, err)
	}

	return usage.Free, nil
}
