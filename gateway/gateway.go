package gateway

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/nmwatchd/bus"
	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/netdb"
	"github.com/the-lightning-land/nmwatchd/network"
	"github.com/the-lightning-land/nmwatchd/setup"
	"github.com/the-lightning-land/nmwatchd/watchdog"
)

const (
	defaultInternetTimeout = 90 * time.Second
	internetPollInterval   = time.Second
	commandTimeout         = 2 * time.Minute
)

// Watchdog is the connectivity watchdog as seen by the gateway.
type Watchdog interface {
	Start()
	Stop()
	Running() bool
	CurrentState() connectivity.State
	WaitForStateChange(ctx context.Context, state connectivity.State) bool
	LastOutcome() (watchdog.Outcome, time.Time)
}

// Store keeps track of the connections made through the gateway.
type Store interface {
	SaveConnection(name string, securityType string, at time.Time) (*netdb.Connection, error)
	DeleteConnection(name string) error
	ListConnections() ([]*netdb.Connection, error)
}

type Display interface {
	ResetDisplay() error
}

type Api interface {
	SetGateway(g *Gateway)
	Serve(l net.Listener) error
}

// Gateway translates bus signals into calls on the setup components and
// the network, and publishes the results back onto the bus.
type Gateway struct {
	bus             bus.Bus
	launcher        *setup.Launcher
	watchdog        Watchdog
	probe           connectivity.Prober
	network         network.Network
	db              Store
	display         Display
	internetTimeout time.Duration
	api             Api
	apiListen       string
	log             Logger

	subscriptions []*bus.Subscription
	apiListener   net.Listener
	ctx           context.Context
	cancel        context.CancelFunc
	asyncMtx      sync.Mutex
	closed        bool
	wg            sync.WaitGroup
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(config *Config) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())

	gateway := &Gateway{
		bus:             config.Bus,
		launcher:        config.Launcher,
		watchdog:        config.Watchdog,
		probe:           config.Probe,
		network:         config.Network,
		db:              config.DB,
		display:         config.Display,
		internetTimeout: config.InternetTimeout,
		api:             config.Api,
		apiListen:       config.ApiListen,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}

	if gateway.internetTimeout <= 0 {
		gateway.internetTimeout = defaultInternetTimeout
	}

	if config.Logger != nil {
		gateway.log = config.Logger
	} else {
		gateway.log = noopLogger{}
	}

	if gateway.api != nil {
		gateway.api.SetGateway(gateway)
	}

	return gateway
}

// Register subscribes all inbound signal handlers.
func (g *Gateway) Register() {
	handlers := map[string]bus.Handler{
		SignalSelectGuiClient:     g.handleSelectGuiClient,
		SignalSelectManagedClient: g.handleSelectManagedClient,
		SignalSelectBalenaClient:  g.handleSelectManagedClient,
		SignalSetActiveClient:     g.handleSetActiveClient,
		SignalRemoveActiveClient:  g.handleRemoveActiveClient,
		SignalConnect:             g.handleConnect,
		SignalDisconnect:          g.handleDisconnect,
		SignalForget:              g.handleForget,
		SignalGetConnected:        g.handleGetConnected,
		SignalInternetConnected:   g.handleInternetConnected,
	}

	for msgType, handler := range handlers {
		g.subscriptions = append(g.subscriptions, g.bus.On(msgType, handler))
	}
}

// Run registers the handlers, starts the watchdog and blocks until Shutdown.
func (g *Gateway) Run() error {
	g.Register()

	if g.api != nil && g.apiListen != "" {
		lis, err := net.Listen("tcp", g.apiListen)
		if err != nil {
			return errors.Errorf("api unable to listen on %v: %v", g.apiListen, err)
		}

		g.apiListener = lis

		go func() {
			err := g.api.Serve(lis)
			if err != nil {
				g.log.Errorf("Could not serve api: %v", err)
			}
		}()

		g.log.Infof("Serving api on %v", g.apiListen)
	}

	g.watchdog.Start()

	<-g.done

	return nil
}

// Shutdown stops the watchdog, cleans up any setup session and releases
// Run.
func (g *Gateway) Shutdown() {
	g.shutdownOnce.Do(func() {
		g.cancel()

		g.watchdog.Stop()

		for _, sub := range g.subscriptions {
			sub.Cancel()
		}

		g.launcher.Teardown()

		if g.apiListener != nil {
			err := g.apiListener.Close()
			if err != nil {
				g.log.Errorf("Could not close listener: %v", err)
			}
		}

		g.asyncMtx.Lock()
		g.closed = true
		g.asyncMtx.Unlock()

		g.wg.Wait()

		close(g.done)
	})
}

func (g *Gateway) emit(msgType string, data map[string]interface{}) {
	err := g.bus.Emit(bus.NewMessage(msgType, data))
	if err != nil {
		g.log.Errorf("Could not emit %v: %v", msgType, err)
	}
}

// goAsync runs slow work off the bus dispatch goroutine.
func (g *Gateway) goAsync(fn func(ctx context.Context)) {
	g.asyncMtx.Lock()
	defer g.asyncMtx.Unlock()

	if g.closed {
		return
	}

	g.wg.Add(1)

	go func() {
		defer g.wg.Done()
		fn(g.ctx)
	}()
}
