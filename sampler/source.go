package sampler

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Source supplies raw resource readings.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations should honor cancellation for blocking reads.
// - Errors: a failed read returns a non-nil error; callers decide how to degrade.
type Source interface {
	// SystemMemory returns total and free system memory in bytes.
	SystemMemory(ctx context.Context) (total, free uint64, err error)

	// HeapMemory returns the heap bytes in use and the heap bytes reserved.
	HeapMemory(ctx context.Context) (used, total uint64, err error)

	// CPUTime returns cumulative user+system CPU time consumed by the process.
	CPUTime(ctx context.Context) (time.Duration, error)

	// LoadAverage returns the 1, 5 and 15 minute load averages.
	LoadAverage(ctx context.Context) ([3]float64, error)

	// ProcessInfo returns the identity of the running process.
	ProcessInfo(ctx context.Context) (ProcessInfo, error)
}

type systemSource struct {
	pid int32

	// Collection functions for mocking
	getMemStats     func(context.Context) (*mem.VirtualMemoryStat, error)
	getLoadAvg      func(context.Context) (*load.AvgStat, error)
	getProcessTimes func(context.Context, int32) (*cpu.TimesStat, error)
	readHeap        func(*runtime.MemStats)
}

// NewSystemSource returns a Source backed by gopsutil and the Go runtime.
func NewSystemSource() Source {
	return &systemSource{
		pid:             int32(os.Getpid()),
		getMemStats:     mem.VirtualMemoryWithContext,
		getLoadAvg:      load.AvgWithContext,
		getProcessTimes: processTimes,
		readHeap:        runtime.ReadMemStats,
	}
}

func processTimes(ctx context.Context, pid int32) (*cpu.TimesStat, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	return p.TimesWithContext(ctx)
}

func (s *systemSource) SystemMemory(ctx context.Context) (uint64, uint64, error) {
	vm, err := s.getMemStats(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

func (s *systemSource) HeapMemory(context.Context) (uint64, uint64, error) {
	var ms runtime.MemStats
	s.readHeap(&ms)
	return ms.HeapAlloc, ms.HeapSys, nil
}

func (s *systemSource) CPUTime(ctx context.Context) (time.Duration, error) {
	t, err := s.getProcessTimes(ctx, s.pid)
	if err != nil {
		return 0, err
	}
	return time.Duration((t.User + t.System) * float64(time.Second)), nil
}

func (s *systemSource) LoadAverage(ctx context.Context) ([3]float64, error) {
	l, err := s.getLoadAvg(ctx)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{l.Load1, l.Load5, l.Load15}, nil
}

func (s *systemSource) ProcessInfo(context.Context) (ProcessInfo, error) {
	return ProcessInfo{
		PID:      int(s.pid),
		Version:  runtime.Version(),
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
	}, nil
}
