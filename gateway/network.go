package gateway

import (
	"context"
	"time"

	"github.com/the-lightning-land/nmwatchd/bus"
	"github.com/the-lightning-land/nmwatchd/network"
)

func (g *Gateway) handleConnect(msg *bus.Message) {
	name := msg.String("connection_name")
	password := msg.String("password")
	securityType := msg.String("security_type")

	connection, err := network.NewConnection(name, password, securityType)
	if err != nil {
		g.log.Errorf("Invalid connect request for %q: %v", name, err)
		g.connectionFailed(name, err)
		return
	}

	g.goAsync(func(ctx context.Context) {
		g.connect(ctx, connection, securityType)
	})
}

func (g *Gateway) connect(ctx context.Context, connection network.Connection, securityType string) {
	name := connection.ConnectionName()

	g.log.Infof("Connecting to wifi %v", connection)

	connectCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	err := g.network.Connect(connectCtx, connection)
	if err != nil {
		g.log.Errorf("Could not connect to wifi %v: %v", name, err)
		g.connectionFailed(name, err)
		return
	}

	g.emit(SignalConnectionSuccessful, map[string]interface{}{
		"connection_name": name,
	})

	if g.db != nil {
		_, err := g.db.SaveConnection(name, securityType, time.Now())
		if err != nil {
			g.log.Errorf("Could not save wifi connection: %v", err)
		}
	}

	if g.awaitInternet(ctx) {
		g.cameOnline()
	} else if ctx.Err() == nil {
		g.log.Warnf("Connected to %v but no internet within %v", name, g.internetTimeout)
	}
}

// awaitInternet polls the probe until the device is online or the
// internet timeout passed.
func (g *Gateway) awaitInternet(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.internetTimeout)
	defer cancel()

	ticker := time.NewTicker(internetPollInterval)
	defer ticker.Stop()

	for {
		if g.probe.HasInternet(ctx) {
			return true
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}
	}
}

func (g *Gateway) connectionFailed(name string, err error) {
	g.emit(SignalConnectionFailure, map[string]interface{}{
		"connection_name": name,
		"errorMessage":    err.Error(),
	})
}

func (g *Gateway) handleDisconnect(msg *bus.Message) {
	name := msg.String("connection_name")

	g.goAsync(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		err := g.network.Disconnect(ctx, name)
		if err != nil {
			g.log.Errorf("Could not disconnect from %v: %v", name, err)
		}
	})
}

func (g *Gateway) handleForget(msg *bus.Message) {
	name := msg.String("connection_name")

	g.goAsync(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		err := g.network.Forget(ctx, name)
		if err != nil {
			g.log.Errorf("Could not forget %v: %v", name, err)
			return
		}

		if g.db != nil {
			err := g.db.DeleteConnection(name)
			if err != nil {
				g.log.Errorf("Could not delete saved connection %v: %v", name, err)
			}
		}
	})
}

func (g *Gateway) handleGetConnected(msg *bus.Message) {
	g.goAsync(func(ctx context.Context) {
		ssid, ok := g.probe.WirelessSsid(ctx)
		if !ok {
			return
		}

		g.emit(SignalIsConnected, map[string]interface{}{
			"connection_name": ssid,
		})
	})
}
