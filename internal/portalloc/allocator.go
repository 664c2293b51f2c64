// Package portalloc reserves loopback TCP ports for browser debug endpoints.
package portalloc

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
)

// ErrNoPortAvailable is returned when a scan finds no free, unreserved port.
var ErrNoPortAvailable = errors.New("no debug port available")

// ProbeFunc reports whether port can currently be bound on loopback.
type ProbeFunc func(port int) bool

// Allocator hands out ports and remembers them until released, so a port
// cannot be handed out twice while a browser is still starting to bind it.
type Allocator struct {
	mu       sync.Mutex
	reserved map[int]struct{}
	probe    ProbeFunc
}

// New creates an Allocator that probes with a throwaway loopback listener.
func New() *Allocator {
	return NewWithProbe(ListenProbe)
}

// NewWithProbe creates an Allocator with a custom availability probe.
func NewWithProbe(probe ProbeFunc) *Allocator {
	return &Allocator{
		reserved: make(map[int]struct{}),
		probe:    probe,
	}
}

// ListenProbe binds and immediately closes a listener on 127.0.0.1:port.
func ListenProbe(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// Acquire scans [start, start+maxAttempts) and reserves the first port that is
// neither reserved nor bound.
func (a *Allocator) Acquire(start, maxAttempts int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for port := start; port < start+maxAttempts && port <= 65535; port++ {
		if _, taken := a.reserved[port]; taken {
			continue
		}
		if !a.probe(port) {
			continue
		}
		a.reserved[port] = struct{}{}
		return port, nil
	}

	return 0, fmt.Errorf("%w in range %d-%d", ErrNoPortAvailable, start, start+maxAttempts-1)
}

// Release drops a reservation. Releasing an unknown port is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

// IsReserved reports whether port is currently held.
func (a *Allocator) IsReserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.reserved[port]
	return ok
}

// Reserved returns the held ports in ascending order.
func (a *Allocator) Reserved() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	ports := make([]int, 0, len(a.reserved))
	for p := range a.reserved {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}
