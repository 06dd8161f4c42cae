//go:build !windows

package process

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	sysconf "github.com/tklauser/go-sysconf"
)

// startTime reports when pid was started by the OS. The zero time means
// the value could not be determined.
func startTime(pid int) time.Time {
	if pid <= 0 {
		return time.Time{}
	}
	if runtime.GOOS == "linux" {
		if t, ok := linuxStartTime(pid); ok {
			return t
		}
	}
	// sysctl on Darwin/BSD, and the fallback when /proc is unreadable
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return time.Time{}
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// linuxStartTime combines field 22 of /proc/<pid>/stat (ticks since boot)
// with btime from /proc/stat.
func linuxStartTime(pid int) (time.Time, bool) {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return time.Time{}, false
	}
	// comm may contain spaces and parens; it ends at the last ") "
	end := bytes.LastIndex(b, []byte(") "))
	if end == -1 {
		return time.Time{}, false
	}
	fields := strings.Fields(string(b[end+2:]))
	if len(fields) < 20 {
		return time.Time{}, false
	}
	ticks, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil || ticks <= 0 {
		return time.Time{}, false
	}
	boot, ok := bootTime()
	if !ok {
		return time.Time{}, false
	}
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || hz <= 0 {
		hz = 100
	}
	offset := time.Duration(ticks) * time.Second / time.Duration(hz)
	return time.Unix(boot, 0).Add(offset), true
}

func bootTime() (int64, bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	for s.Scan() {
		if v, found := strings.CutPrefix(s.Text(), "btime "); found {
			bt, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			return bt, err == nil && bt > 0
		}
	}
	return 0, false
}
