package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/gateway"
	"github.com/the-lightning-land/nmwatchd/netdb"
)

type fakeGateway struct {
	mu          sync.Mutex
	status      gateway.Status
	connections []*netdb.Connection
	err         error
	stopped     int
	changed     chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{changed: make(chan struct{})}
}

func (f *fakeGateway) Status(ctx context.Context) *gateway.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := f.status
	return &status
}

func (f *fakeGateway) Connections() ([]*netdb.Connection, error) {
	return f.connections, f.err
}

func (f *fakeGateway) StopSetup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped++
	f.status.InSetup = false
}

func (f *fakeGateway) CurrentState() connectivity.State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.status.State
}

func (f *fakeGateway) WaitForStateChange(ctx context.Context, state connectivity.State) bool {
	for {
		f.mu.Lock()
		current := f.status.State
		changed := f.changed
		f.mu.Unlock()

		if current != state {
			return true
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

func (f *fakeGateway) setState(state connectivity.State) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.status.State = state
	close(f.changed)
	f.changed = make(chan struct{})
}

func newTestApi(g *fakeGateway) *Api {
	a := New(&Config{LongPollTimeout: 50 * time.Millisecond})
	a.gateway = g
	return a
}

func serve(t *testing.T, a *Api, method string, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestGetStatus(t *testing.T) {
	g := newFakeGateway()
	g.status = gateway.Status{
		Monitoring:   true,
		State:        connectivity.Online,
		LastOutcome:  "healthy",
		LastCheck:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ActiveClient: "gui",
		Ssid:         "home-network",
	}

	rec := serve(t, newTestApi(g), http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	res := &getStatusResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(res))

	assert.True(t, res.Monitoring)
	assert.Equal(t, "ONLINE", res.State)
	assert.Equal(t, "healthy", res.LastOutcome)
	assert.Equal(t, "gui", res.ActiveClient)
	assert.Equal(t, "home-network", res.Ssid)
	require.NotNil(t, res.LastCheck)
	assert.True(t, g.status.LastCheck.Equal(*res.LastCheck))
}

func TestGetStatus_WrongMethod(t *testing.T) {
	rec := serve(t, newTestApi(newFakeGateway()), http.MethodPost, "/api/v1/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetNetworks(t *testing.T) {
	g := newFakeGateway()
	g.connections = []*netdb.Connection{
		{Name: "home-network", SecurityType: "wpa-psk", ConnectCount: 2},
		{Name: "cafe", SecurityType: "open", ConnectCount: 1},
	}

	rec := serve(t, newTestApi(g), http.MethodGet, "/api/v1/networks")
	require.Equal(t, http.StatusOK, rec.Code)

	res := &getNetworksResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(res))

	require.Len(t, res.Networks, 2)
	assert.Equal(t, "home-network", res.Networks[0].Name)
	assert.Equal(t, 2, res.Networks[0].ConnectCount)
	assert.Equal(t, "open", res.Networks[1].SecurityType)
}

func TestGetNetworks_Empty(t *testing.T) {
	rec := serve(t, newTestApi(newFakeGateway()), http.MethodGet, "/api/v1/networks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"networks":[]}`, rec.Body.String())
}

func TestGetNetworks_Error(t *testing.T) {
	g := newFakeGateway()
	g.err = errors.New("database closed")

	rec := serve(t, newTestApi(g), http.MethodGet, "/api/v1/networks")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"database closed"}`, rec.Body.String())
}

func TestPostStopSetup(t *testing.T) {
	g := newFakeGateway()
	g.status.InSetup = true

	rec := serve(t, newTestApi(g), http.MethodPost, "/api/v1/setup/stop")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, g.stopped)
	assert.JSONEq(t, `{"inSetup":false}`, rec.Body.String())
}

func TestGetConnectivity_Current(t *testing.T) {
	g := newFakeGateway()
	g.status.State = connectivity.Online

	rec := serve(t, newTestApi(g), http.MethodGet, "/api/v1/connectivity")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"ONLINE","changed":false}`, rec.Body.String())
}

func TestGetConnectivity_WaitTimesOut(t *testing.T) {
	g := newFakeGateway()

	rec := serve(t, newTestApi(g), http.MethodGet, "/api/v1/connectivity?wait=OFFLINE")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"OFFLINE","changed":false}`, rec.Body.String())
}

func TestGetConnectivity_WaitChanges(t *testing.T) {
	g := newFakeGateway()
	a := New(&Config{LongPollTimeout: 5 * time.Second})
	a.gateway = g

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.setState(connectivity.Online)
	}()

	rec := serve(t, a, http.MethodGet, "/api/v1/connectivity?wait=OFFLINE")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"ONLINE","changed":true}`, rec.Body.String())
}

func TestGetConnectivity_UnknownState(t *testing.T) {
	rec := serve(t, newTestApi(newFakeGateway()), http.MethodGet, "/api/v1/connectivity?wait=SOMETIMES")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConnectivityEvents(t *testing.T) {
	g := newFakeGateway()

	server := httptest.NewServer(newTestApi(g))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/connectivity/events"

	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))

	event := &connectivityEvent{}
	require.NoError(t, c.ReadJSON(event))
	assert.Equal(t, "OFFLINE", event.State)

	g.setState(connectivity.Online)

	require.NoError(t, c.ReadJSON(event))
	assert.Equal(t, "ONLINE", event.State)
}
