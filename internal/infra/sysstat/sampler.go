package sysstat

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/prometheus/procfs"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// ErrNoMeminfo is returned when /proc/meminfo lacks the fields needed.
var ErrNoMeminfo = errors.New("sysstat: meminfo missing MemTotal")

// Sampler reads CPU and memory usage. It is safe for concurrent use.
type Sampler struct {
	fs   procfs.FS
	cpus int

	mu   sync.Mutex
	prev *procfs.CPUStat
}

// New returns a Sampler over the default /proc mount.
func New() (*Sampler, error) {
	return NewWithMount(procfs.DefaultMountPoint)
}

// NewWithMount returns a Sampler reading procfs at mountPoint.
func NewWithMount(mountPoint string) (*Sampler, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &Sampler{fs: fs, cpus: runtime.NumCPU()}, nil
}

// Sample returns current usage.
func (s *Sampler) Sample() (domain.SystemStats, error) {
	var stats domain.SystemStats

	if err := s.sampleMemory(&stats); err != nil {
		return stats, err
	}
	cpu, err := s.sampleCPU()
	if err != nil {
		return stats, err
	}
	stats.CPUPercent = cpu
	return stats, nil
}

func (s *Sampler) sampleMemory(out *domain.SystemStats) error {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return fmt.Errorf("read meminfo: %w", err)
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return ErrNoMeminfo
	}
	total := *mi.MemTotal

	var avail uint64
	switch {
	case mi.MemAvailable != nil:
		avail = *mi.MemAvailable
	default:
		// Kernels before 3.14 have no MemAvailable.
		avail = deref(mi.MemFree) + deref(mi.Buffers) + deref(mi.Cached)
	}
	avail = min(avail, total)
	used := total - avail

	out.MemoryTotalMB = round1(float64(total) / 1024)
	out.MemoryUsedMB = round1(float64(used) / 1024)
	out.MemoryPercent = round1(float64(used) / float64(total) * 100)
	return nil
}

func (s *Sampler) sampleCPU() (float64, error) {
	st, err := s.fs.Stat()
	if err != nil {
		return s.loadFallback(err)
	}
	cur := st.CPUTotal

	s.mu.Lock()
	prev := s.prev
	s.prev = &cur
	s.mu.Unlock()

	busy, total := busyTotal(cur)
	if prev != nil {
		pb, pt := busyTotal(*prev)
		busy, total = busy-pb, total-pt
	}
	if total <= 0 {
		return 0, nil
	}
	return round1(clampPct(busy / total * 100)), nil
}

func (s *Sampler) loadFallback(statErr error) (float64, error) {
	la, err := s.fs.LoadAvg()
	if err != nil {
		return 0, fmt.Errorf("read cpu stat: %w", errors.Join(statErr, err))
	}
	return round1(clampPct(la.Load1 / float64(s.cpus) * 100)), nil
}

func busyTotal(c procfs.CPUStat) (busy, total float64) {
	idle := c.Idle + c.Iowait
	total = c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
	return total - idle, total
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func clampPct(v float64) float64 {
	return max(0, min(100, v))
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
