package probes

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/jonwraymond/pulse/health"
)

// Collection function for mocking
var diskUsage = disk.UsageWithContext

// Disk reports healthy when dir can be stat'ed and critical otherwise. An
// empty dir means the working directory. Usage figures are attached when
// the filesystem reports them.
func Disk(dir string) health.CheckFunc {
	return func(ctx context.Context) (health.Result, error) {
		path := dir
		if path == "" {
			wd, err := os.Getwd()
			if err != nil {
				return health.Critical(fmt.Sprintf("Disk not accessible: %v", err)), nil
			}
			path = wd
		}

		if _, err := os.Stat(path); err != nil {
			return health.Critical(fmt.Sprintf("Disk not accessible: %v", err)), nil
		}

		res := health.Healthy("Disk accessible")
		md := health.Metadata{"path": health.StringValue(path)}

		if u, err := diskUsage(ctx, path); err == nil && u != nil {
			md["free"] = health.StringValue(humanize.IBytes(u.Free))
			md["total"] = health.StringValue(humanize.IBytes(u.Total))
			md["usedPercent"] = health.NumberValue(u.UsedPercent)
			res = res.WithValue(u.UsedPercent)
		}
		return res.WithMetadata(md), nil
	}
}
