package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// ChildSample holds CPU and memory metrics for the supervised process.
type ChildSample struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// ChildSampler periodically samples the resource usage of one child
// process while the supervisor runs in the foreground.
type ChildSampler struct {
	name     string
	interval time.Duration

	mu     sync.RWMutex
	last   ChildSample
	proc   *process.Process
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	cpuPercent *prometheus.GaugeVec
	memoryMB   *prometheus.GaugeVec
	numThreads *prometheus.GaugeVec
	numFDs     *prometheus.GaugeVec
}

func NewChildSampler(name string, interval time.Duration) *ChildSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	gauge := func(metric, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "child",
			Name:      metric,
			Help:      help,
		}, []string{"name"})
	}
	return &ChildSampler{
		name:       name,
		interval:   interval,
		stopCh:     make(chan struct{}),
		cpuPercent: gauge("cpu_percent", "CPU usage percentage of the supervised process."),
		memoryMB:   gauge("memory_mb", "Resident memory of the supervised process in MB."),
		numThreads: gauge("num_threads", "Thread count of the supervised process."),
		numFDs:     gauge("num_fds", "Open file descriptors of the supervised process (Unix only)."),
	}
}

func (c *ChildSampler) Register(r prometheus.Registerer) error {
	for _, g := range []prometheus.Collector{c.cpuPercent, c.memoryMB, c.numThreads, c.numFDs} {
		if err := r.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Start samples pid every interval until ctx is done or Stop is called.
func (c *ChildSampler) Start(ctx context.Context, pid int) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		c.sampleOnce(pid)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sampleOnce(pid)
			}
		}
	}()
}

func (c *ChildSampler) Stop() {
	c.once.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Last returns the most recent sample; ok is false before the first one.
func (c *ChildSampler) Last() (ChildSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, !c.last.Timestamp.IsZero()
}

func (c *ChildSampler) sampleOnce(pid int) {
	s, err := c.sample(int32(pid))
	if err != nil {
		slog.Debug("child sample failed", "pid", pid, "error", err)
		return
	}
	c.cpuPercent.WithLabelValues(c.name).Set(s.CPUPercent)
	c.memoryMB.WithLabelValues(c.name).Set(s.MemoryMB)
	c.numThreads.WithLabelValues(c.name).Set(float64(s.NumThreads))
	if runtime.GOOS != "windows" && s.NumFDs > 0 {
		c.numFDs.WithLabelValues(c.name).Set(float64(s.NumFDs))
	}
	c.mu.Lock()
	c.last = s
	c.mu.Unlock()
}

func (c *ChildSampler) sample(pid int32) (ChildSample, error) {
	// the handle is kept so CPUPercent measures between consecutive samples
	if c.proc == nil || c.proc.Pid != pid {
		p, err := process.NewProcess(pid)
		if err != nil {
			return ChildSample{}, fmt.Errorf("failed to create process handle: %w", err)
		}
		c.proc = p
	}
	proc := c.proc

	cpu, err := proc.Percent(0)
	if err != nil {
		cpu = 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return ChildSample{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	threads, _ := proc.NumThreads()

	s := ChildSample{
		PID:        pid,
		CPUPercent: cpu,
		MemoryMB:   float64(mem.RSS) / 1024 / 1024,
		MemoryRSS:  mem.RSS,
		NumThreads: threads,
		Timestamp:  time.Now(),
	}
	if runtime.GOOS != "windows" {
		if fds, err := proc.NumFDs(); err == nil {
			s.NumFDs = fds
		}
	}
	return s, nil
}
