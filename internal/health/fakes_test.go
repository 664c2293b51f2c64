package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/chromenv/internal/prober"
)

type fakeChannel struct {
	events chan string
	once   sync.Once
	closed atomic.Bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan string, 8)}
}

func (c *fakeChannel) Events() <-chan string { return c.events }

func (c *fakeChannel) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.events)
	})
	return nil
}

// fakeDialer hands out channels in order; once exhausted every dial fails.
type fakeDialer struct {
	mu       sync.Mutex
	channels []*fakeChannel
	calls    int
}

func (d *fakeDialer) Dial(context.Context, string) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.channels) == 0 {
		return nil, errors.New("handshake failed")
	}
	ch := d.channels[0]
	d.channels = d.channels[1:]
	return ch, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeDiscoverer struct {
	up atomic.Bool
}

func (d *fakeDiscoverer) Discover(context.Context, int) (string, error) {
	if !d.up.Load() {
		return "", errors.New("connection refused")
	}
	return "ws://127.0.0.1/devtools/browser/fake", nil
}

type fakeProber struct {
	mu    sync.Mutex
	alive map[string]bool
	calls int
	block chan struct{}
}

func (p *fakeProber) FindByCommandLineFragment(ctx context.Context, fragments ...string) (map[string][]int, error) {
	p.mu.Lock()
	p.calls++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]int)
	for _, f := range fragments {
		if p.alive[f] {
			out[f] = []int{4242}
		}
	}
	return out, nil
}

func (p *fakeProber) TerminateByCommandLineFragment(context.Context, string) (int, error) {
	return 0, nil
}

func (p *fakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProber) setAlive(fragment string, alive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alive == nil {
		p.alive = make(map[string]bool)
	}
	p.alive[fragment] = alive
}

// processTable is a fixed OS process table for a real prober.Prober.
type processTable []prober.ProcessInfo

func (t processTable) List(context.Context) ([]prober.ProcessInfo, error) { return t, nil }

func (processTable) Terminate(context.Context, int) error { return nil }

func (processTable) Kill(context.Context, int) error { return nil }
