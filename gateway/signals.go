package gateway

const (
	SignalSelectGuiClient     = "ovos.phal.nm.client.mode.select.gui"
	SignalSelectManagedClient = "ovos.phal.nm.client.mode.select.managed"
	SignalSelectBalenaClient  = "ovos.phal.nm.client.mode.select.balena"
	SignalSetActiveClient     = "ovos.phal.nm.set.active.client"
	SignalRemoveActiveClient  = "ovos.phal.nm.remove.active.client"

	SignalConnect      = "ovos.phal.nm.connect"
	SignalDisconnect   = "ovos.phal.nm.disconnect"
	SignalForget       = "ovos.phal.nm.forget"
	SignalGetConnected = "ovos.phal.nm.get.connected"

	SignalInternetConnected = "mycroft.internet.connected"

	SignalIsConnected          = "ovos.phal.nm.is.connected"
	SignalConnectionSuccessful = "ovos.phal.nm.connection.successful"
	SignalConnectionFailure    = "ovos.phal.nm.connection.failure"
	SignalNtpSync              = "system.ntp.sync"
)
