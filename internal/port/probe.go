// Package port answers two questions about a TCP port: is something
// accepting connections on it, and which OS process owns the listener.
package port

import (
	"context"
	"net"
	"strconv"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
)

const DefaultDialTimeout = 500 * time.Millisecond

// Lister enumerates sockets. It matches gopsutil's ConnectionsWithContext.
type Lister func(ctx context.Context, kind string) ([]gopsnet.ConnectionStat, error)

type Probe struct {
	DialTimeout time.Duration
	list        Lister
}

func New() *Probe {
	return &Probe{DialTimeout: DefaultDialTimeout, list: gopsnet.ConnectionsWithContext}
}

// NewWithLister is used by tests to substitute socket enumeration.
func NewWithLister(l Lister) *Probe {
	return &Probe{DialTimeout: DefaultDialTimeout, list: l}
}

// IsOccupied reports whether a TCP connect to host:port succeeds.
func (p *Probe) IsOccupied(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: p.timeout()}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(DialHost(host), strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// OccupantOf returns the PID owning a listening socket on port. ok is false
// when the owner cannot be determined, which is different from "free".
func (p *Probe) OccupantOf(ctx context.Context, port int) (int, bool) {
	conns, err := p.list(ctx, "tcp")
	if err != nil {
		return 0, false
	}
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) {
			continue
		}
		if c.Pid == 0 {
			return 0, false
		}
		return int(c.Pid), true
	}
	return 0, false
}

func (p *Probe) timeout() time.Duration {
	if p.DialTimeout <= 0 {
		return DefaultDialTimeout
	}
	return p.DialTimeout
}

// DialHost maps wildcard bind addresses to loopback.
func DialHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::", "[::]":
		return "::1"
	}
	return host
}
