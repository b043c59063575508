package setup

import (
	"fmt"
)

const (
	SignalSetupStarted       = "ovos.wifi.setup.started"
	SignalClientModeSelector = "ovos.phal.nm.client.mode.selector"
)

func activateSignal(client ClientID) string {
	return fmt.Sprintf("ovos.phal.nm.activate.%s.client", client)
}

func deactivateSignal(client ClientID) string {
	return fmt.Sprintf("ovos.phal.nm.deactivate.%s.client", client)
}

func cleanupSignal(client ClientID) string {
	return fmt.Sprintf("ovos.phal.nm.cleanup.%s.client", client)
}
