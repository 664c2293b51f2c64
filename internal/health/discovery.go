package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNoDebuggerURL is returned when /json/version answers without a websocket URL.
var ErrNoDebuggerURL = errors.New("no webSocketDebuggerUrl in version metadata")

// Discoverer resolves a debug port to the browser's protocol websocket URL.
type Discoverer interface {
	Discover(ctx context.Context, port int) (string, error)
}

// HTTPDiscoverer queries http://<host>:<port>/json/version.
type HTTPDiscoverer struct {
	Host   string
	Client *http.Client
}

// NewHTTPDiscoverer creates a discoverer for loopback with the given timeout.
// 127.0.0.1 is used rather than localhost to avoid resolving to ::1.
func NewHTTPDiscoverer(timeout time.Duration) *HTTPDiscoverer {
	return &HTTPDiscoverer{
		Host:   "127.0.0.1",
		Client: &http.Client{Timeout: timeout},
	}
}

// Discover returns the browser-level websocket debugger URL.
func (d *HTTPDiscoverer) Discover(ctx context.Context, port int) (string, error) {
	url := "http://" + net.JoinHostPort(d.Host, strconv.Itoa(port)) + "/json/version"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version metadata returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}

	wsURL := gjson.GetBytes(body, "webSocketDebuggerUrl").String()
	if wsURL == "" {
		return "", ErrNoDebuggerURL
	}
	return wsURL, nil
}
