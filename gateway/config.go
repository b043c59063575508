package gateway

import (
	"time"

	"github.com/the-lightning-land/nmwatchd/bus"
	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/network"
	"github.com/the-lightning-land/nmwatchd/setup"
)

type Config struct {
	Bus      bus.Bus
	Launcher *setup.Launcher
	Watchdog Watchdog
	Probe    connectivity.Prober
	Network  network.Network
	DB       Store
	Display  Display
	// InternetTimeout bounds the wait for internet after a connect request.
	InternetTimeout time.Duration
	Api             Api
	ApiListen       string
	Logger          Logger
}
