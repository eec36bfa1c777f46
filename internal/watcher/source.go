package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/snapstream-io/snapstream/shared/types"
)

// Source is a passive snapshot producer sampled by a Watcher. Read returns
// the current snapshot value; the watcher owns diffing and never asks the
// source whether anything changed.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Origin is the "source" tag stamped on broadcast events,
	// e.g. "file-watcher".
	Origin() string

	// Read samples the source. A returned error means the snapshot is
	// missing or unreadable and the watcher treats the state as unchanged.
	Read(ctx context.Context) (any, error)
}

// FileSource reads a single JSON document from a well-known path on the host
// filesystem. The producing subsystem owns the format; the only requirement
// is that each read parses as one JSON document.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a FileSource sampling path.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (f *FileSource) Name() string   { return f.name }
func (f *FileSource) Origin() string { return "file-watcher" }

// Read parses the file into an untyped JSON value. Decoding to the untyped
// form (rather than keeping the raw text) is what makes the watcher's diff
// structural: key order and whitespace differences never register as change.
func (f *FileSource) Read(ctx context.Context) (any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("watcher: reading %s: %w", f.path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("watcher: parsing %s: %w", f.path, err)
	}
	return doc, nil
}

// SystemSource samples host resource utilization via gopsutil. It backs the
// system-status room's coarse metrics feed.
type SystemSource struct {
	// diskPath is the mount point whose usage is reported, normally "/".
	diskPath string
}

// NewSystemSource creates a SystemSource reporting disk usage for diskPath.
func NewSystemSource(diskPath string) *SystemSource {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemSource{diskPath: diskPath}
}

func (s *SystemSource) Name() string   { return "system" }
func (s *SystemSource) Origin() string { return "system-watcher" }

func (s *SystemSource) Read(ctx context.Context) (any, error) {
	status := types.SystemStatus{}

	if hostname, err := os.Hostname(); err == nil {
		status.Hostname = hostname
	}

	// Percentage with zero interval returns utilization since the last call,
	// which suits a periodic sampler.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		status.CPUPercent = round1(percents[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("watcher: reading memory stats: %w", err)
	}
	status.MemoryPercent = round1(vm.UsedPercent)

	du, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return nil, fmt.Errorf("watcher: reading disk usage for %s: %w", s.diskPath, err)
	}
	status.DiskPercent = round1(du.UsedPercent)

	return status, nil
}

// round1 truncates noise so a fraction-of-a-percent wobble does not register
// as a content change every tick.
func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
