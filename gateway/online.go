package gateway

import (
	"github.com/the-lightning-land/nmwatchd/bus"
)

// handleInternetConnected runs when the system came online after booting.
func (g *Gateway) handleInternetConnected(msg *bus.Message) {
	g.cameOnline()
}

func (g *Gateway) cameOnline() {
	g.log.Infof("System is online")

	if g.display != nil {
		err := g.display.ResetDisplay()
		if err != nil {
			g.log.Warnf("Could not reset display: %v", err)
		}
	}

	// sync clock as soon as we have internet
	g.emit(SignalNtpSync, nil)

	// just in case
	g.launcher.Teardown()
}
