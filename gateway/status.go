package gateway

import (
	"context"
	"time"

	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/netdb"
)

type Status struct {
	Monitoring    bool
	State         connectivity.State
	LastOutcome   string
	LastCheck     time.Time
	InSetup       bool
	ActiveClient  string
	PendingClient string
	Ssid          string
}

func (g *Gateway) Status(ctx context.Context) *Status {
	outcome, lastCheck := g.watchdog.LastOutcome()
	ssid, _ := g.probe.WirelessSsid(ctx)

	return &Status{
		Monitoring:    g.watchdog.Running(),
		State:         g.watchdog.CurrentState(),
		LastOutcome:   outcome.String(),
		LastCheck:     lastCheck,
		InSetup:       g.launcher.InSetup(),
		ActiveClient:  string(g.launcher.Registry().Active()),
		PendingClient: string(g.launcher.Pending()),
		Ssid:          ssid,
	}
}

// Connections lists the networks joined through the gateway.
func (g *Gateway) Connections() ([]*netdb.Connection, error) {
	if g.db == nil {
		return []*netdb.Connection{}, nil
	}

	return g.db.ListConnections()
}

// WaitForStateChange blocks until connectivity differs from the given state.
func (g *Gateway) WaitForStateChange(ctx context.Context, state connectivity.State) bool {
	return g.watchdog.WaitForStateChange(ctx, state)
}

func (g *Gateway) CurrentState() connectivity.State {
	return g.watchdog.CurrentState()
}
