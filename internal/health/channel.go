package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/cdp"
)

// Channel is a live protocol connection. Events is closed when the
// connection drops or Close is called.
type Channel interface {
	Events() <-chan string
	Close() error
}

// Dialer opens a Channel to a websocket debugger URL.
type Dialer interface {
	Dial(ctx context.Context, wsURL string) (Channel, error)
}

// CDPDialer connects with rod's protocol client.
type CDPDialer struct {
	Timeout time.Duration
}

// Dial connects and subscribes to target lifecycle events.
func (d CDPDialer) Dial(ctx context.Context, wsURL string) (Channel, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, wsURL, nil); err != nil {
		return nil, err
	}

	client := cdp.New().Start(ws)
	ch := newCDPChannel(ws, client)

	// Crash notifications for pages only arrive with target discovery on.
	// Failure here still leaves a usable liveness channel.
	_, _ = client.Call(ctx, "", "Target.setDiscoverTargets", map[string]any{"discover": true})

	return ch, nil
}

type cdpChannel struct {
	ws        *cdp.WebSocket
	events    chan string
	closeOnce sync.Once
}

func newCDPChannel(ws *cdp.WebSocket, client *cdp.Client) *cdpChannel {
	c := &cdpChannel{
		ws:     ws,
		events: make(chan string, 32),
	}

	// The client blocks until its events are consumed, so drain continuously.
	go func() {
		defer close(c.events)
		for ev := range client.Event() {
			select {
			case c.events <- ev.Method:
			default:
			}
		}
	}()

	return c
}

func (c *cdpChannel) Events() <-chan string {
	return c.events
}

func (c *cdpChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}
