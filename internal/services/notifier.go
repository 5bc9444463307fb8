package services

import (
	"context"

	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/gateway"
)

// Notifier pushes an event to every connected dashboard. *live.Hub
// satisfies it.
type Notifier interface {
	Broadcast(event string, data interface{})
}

// NopNotifier drops every event
type NopNotifier struct{}

// Broadcast implements Notifier
func (NopNotifier) Broadcast(string, interface{}) {}

// Gateway is the part of the device API the services call. *gateway.Client
// satisfies it.
type Gateway interface {
	Fetch(ctx context.Context, path string) ([]extract.Record, error)
	Send(ctx context.Context, phoneNumbers []string, text string) (*gateway.SendResponse, error)
	Health(ctx context.Context) (map[string]any, error)
}

func orNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}
