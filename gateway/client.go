package gateway

import (
	"github.com/the-lightning-land/nmwatchd/bus"
	"github.com/the-lightning-land/nmwatchd/setup"
)

func (g *Gateway) handleSelectGuiClient(msg *bus.Message) {
	g.launcher.Select(setup.GuiClient)
}

func (g *Gateway) handleSelectManagedClient(msg *bus.Message) {
	g.launcher.Select(setup.ManagedClient)
}

func (g *Gateway) handleSetActiveClient(msg *bus.Message) {
	client := setup.ParseClientID(msg.String("client"))

	g.log.Infof("Client %q announced ownership of setup", client)

	g.launcher.Registry().SetActive(client)
	g.launcher.Confirm(client)
}

func (g *Gateway) handleRemoveActiveClient(msg *bus.Message) {
	g.launcher.Deactivate()
}

// StopSetup tears down the current setup session.
func (g *Gateway) StopSetup() {
	g.launcher.Teardown()
}
