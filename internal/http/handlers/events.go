package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/jmylchreest/chromenv/internal/http/mw"
)

// Subscriber hands out instances-changed signal channels.
type Subscriber interface {
	Subscribe() (<-chan struct{}, func())
}

// InstancesChangedEvent is sent whenever an instance launches, is confirmed,
// closes or dies. It carries nothing; clients re-query the instance list.
type InstancesChangedEvent struct{}

// HeartbeatEvent keeps idle connections open through proxies.
type HeartbeatEvent struct {
	Time string `json:"time" doc:"Server time"`
}

// EventsHandler streams instance changes to UI clients.
type EventsHandler struct {
	sub       Subscriber
	heartbeat time.Duration
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(sub Subscriber) *EventsHandler {
	return &EventsHandler{sub: sub, heartbeat: 15 * time.Second}
}

// Register adds the SSE endpoint to api.
func (h *EventsHandler) Register(api huma.API, path string) {
	sse.Register(api, huma.Operation{
		OperationID: "streamEvents",
		Method:      http.MethodGet,
		Path:        path,
		Summary:     "Stream instance changes",
		Description: "Server-Sent Events stream. An empty instances-changed event is sent on connect and after " +
			"every change; clients re-query the instances endpoint. Signals that arrive faster than the client reads are coalesced.",
		Tags:     []string{"Events"},
		Security: []map[string][]string{{mw.SecurityScheme: {}}},
	}, map[string]any{
		"instances-changed": InstancesChangedEvent{},
		"heartbeat":         HeartbeatEvent{},
	}, h.stream)
}

func (h *EventsHandler) stream(ctx context.Context, input *struct{}, send sse.Sender) {
	signals, cancel := h.sub.Subscribe()
	defer cancel()

	if err := send.Data(InstancesChangedEvent{}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if err := send.Data(InstancesChangedEvent{}); err != nil {
				return
			}
		case now := <-ticker.C:
			if err := send.Data(HeartbeatEvent{Time: now.UTC().Format(time.RFC3339)}); err != nil {
				return
			}
		}
	}
}
