package dependency

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Probe reports nil when the dependency is reachable.
type Probe func(ctx context.Context) error

const (
	KindTCP      = "tcp"
	KindBolt     = "bolt"
	KindHTTP     = "http"
	KindPostgres = "postgres"
)

// boltMagic opens every Bolt connection.
const boltMagic uint32 = 0x6060B017

// boltVersions are the four proposals sent in the handshake, newest first.
// Each is encoded as [0, range, minor, major].
var boltVersions = [4]uint32{
	0x00040405, // 5.4 down to 5.0
	0x00020404, // 4.4 down to 4.2
	0x00000104, // 4.1
	0x00000003, // 3.0
}

var ErrNoBoltVersion = errors.New("bolt server rejected all protocol versions")

// New returns the probe for kind pointed at address.
func New(kind, address string) (Probe, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("dependency %s: address is required", kind)
	}
	switch strings.ToLower(kind) {
	case KindTCP:
		return TCP(address), nil
	case KindBolt, "neo4j":
		return Bolt(address), nil
	case KindHTTP, "https":
		return HTTP(address), nil
	case KindPostgres, "postgresql":
		return Postgres(address), nil
	default:
		return nil, fmt.Errorf("unsupported dependency type: %q", kind)
	}
}

func dial(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// TCP succeeds when a connection to address can be opened.
func TCP(address string) Probe {
	return func(ctx context.Context) error {
		c, err := dial(ctx, address)
		if err != nil {
			return err
		}
		return c.Close()
	}
}

// Bolt performs the Bolt handshake against a Neo4j server. A listening
// socket is not enough: the server must agree on a protocol version.
func Bolt(address string) Probe {
	return func(ctx context.Context) error {
		c, err := dial(ctx, address)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		if dl, ok := ctx.Deadline(); ok {
			_ = c.SetDeadline(dl)
		}

		var req [20]byte
		binary.BigEndian.PutUint32(req[0:], boltMagic)
		for i, v := range boltVersions {
			binary.BigEndian.PutUint32(req[4+4*i:], v)
		}
		if _, err := c.Write(req[:]); err != nil {
			return fmt.Errorf("bolt handshake: %w", err)
		}
		var resp [4]byte
		if _, err := io.ReadFull(c, resp[:]); err != nil {
			return fmt.Errorf("bolt handshake: %w", err)
		}
		if binary.BigEndian.Uint32(resp[:]) == 0 {
			return ErrNoBoltVersion
		}
		return nil
	}
}

// HTTP treats any response below 500 as reachable.
func HTTP(url string) Probe {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// Postgres connects with pgx and pings.
func Postgres(dsn string) Probe {
	return func(ctx context.Context) error {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close(context.Background()) }()
		return conn.Ping(ctx)
	}
}
