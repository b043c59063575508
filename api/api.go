package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/gateway"
	"github.com/the-lightning-land/nmwatchd/netdb"
)

const defaultLongPollTimeout = 30 * time.Second

// Gateway is what the api exposes of the running daemon.
type Gateway interface {
	Status(ctx context.Context) *gateway.Status
	Connections() ([]*netdb.Connection, error)
	StopSetup()
	CurrentState() connectivity.State
	WaitForStateChange(ctx context.Context, state connectivity.State) bool
}

type Config struct {
	// LongPollTimeout bounds how long a connectivity wait may block
	LongPollTimeout time.Duration
	Log             Logger
}

// check Apis compliance to its interface during compile time
var _ gateway.Api = (*Api)(nil)

type Api struct {
	gateway         Gateway
	router          *mux.Router
	longPollTimeout time.Duration
	log             Logger
}

func New(config *Config) *Api {
	api := &Api{
		router:          mux.NewRouter(),
		longPollTimeout: config.LongPollTimeout,
	}

	if api.longPollTimeout <= 0 {
		api.longPollTimeout = defaultLongPollTimeout
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	api.router.Handle("/api/v1/status", api.handleGetStatus()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/networks", api.handleGetNetworks()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/setup/stop", api.handlePostStopSetup()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/connectivity", api.handleGetConnectivity()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/connectivity/events", api.handleGetConnectivityEvents()).Methods(http.MethodGet)

	return api
}

func (a *Api) SetGateway(g *gateway.Gateway) {
	a.gateway = g
}

func (a *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}
