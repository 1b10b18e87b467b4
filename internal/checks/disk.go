package checks

import (
	"context"
	"fmt"

	"github.com/hamed0406/healthwatch/internal/health"
)

// Disk fails when the free space available to unprivileged users at Path
// drops below ThresholdKB.
type Disk struct {
	base
	Path        string
	ThresholdKB int64
	// FreeKB reports free space; defaults to a statfs call.
	FreeKB func(path string) (int64, error)
}

func NewDisk(name, path string, thresholdKB int64, mode health.FailureMode, d Deps) *Disk {
	return &Disk{
		base:        newBase("disk", name, mode, d),
		Path:        path,
		ThresholdKB: thresholdKB,
		FreeKB:      freeKB,
	}
}

func (c *Disk) Evaluate(ctx context.Context) health.Verdict {
	return c.evaluate(ctx, func(context.Context) health.Verdict {
		free, err := c.FreeKB(c.Path)
		if err != nil {
			return c.fail(fmt.Sprintf("disk space of %s unavailable: %v", c.Path, err))
		}
		if free < c.ThresholdKB {
			return c.fail(fmt.Sprintf("disk space is below threshold. free space: %d", free))
		}
		return health.Healthy(c.now())
	})
}
