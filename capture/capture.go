// Package capture is the append-only hex-dump side-log the UDP engine
// writes every datagram to, one CSV-ish line per packet, fsync'd
// immediately so a crash never loses the tail of the log.
package capture

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sync"
)

// Log appends "direction","address","hex" lines to an underlying file.
// A nil *Log is valid and silently drops everything, so callers can
// wire it in unconditionally.
type Log struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates or appends to path. Passing an empty path disables
// capture: Open("") returns (nil, nil).
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	return &Log{f: f}, nil
}

// Close releases the underlying file. Safe to call on a nil *Log.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}

// LogIn records a datagram received from addr.
func (l *Log) LogIn(addr *net.UDPAddr, data []byte) { l.write("I", addr, data) }

// LogOut records a datagram sent to addr.
func (l *Log) LogOut(addr *net.UDPAddr, data []byte) { l.write("O", addr, data) }

func (l *Log) write(direction string, addr *net.UDPAddr, data []byte) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%q,%q,%q\r\n", direction, addr.String(), hex.EncodeToString(data))
	if _, err := l.f.WriteString(line); err != nil {
		return
	}
	l.f.Sync()
}
