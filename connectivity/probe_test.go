package connectivity

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSsid struct {
	ssid string
	err  error
}

func (f *fakeSsid) Ssid(ctx context.Context) (string, error) {
	return f.ssid, f.err
}

type fakeDialer struct {
	reachable map[string]bool
	dialed    []string
}

func (f *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	f.dialed = append(f.dialed, address)

	if !f.reachable[address] {
		return nil, errors.New("connection refused")
	}

	client, server := net.Pipe()
	_ = server.Close()

	return client, nil
}

func TestProbe_HasInternet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Microsoft NCSI"))
	}))
	defer srv.Close()

	dialer := &fakeDialer{reachable: map[string]bool{"b:53": true}}

	probe := NewProbe(&ProbeConfig{
		Resolvers: []string{"a:53", "b:53"},
		CheckUrl:  srv.URL,
		Dialer:    dialer,
	})

	assert.True(t, probe.HasInternet(context.Background()))
	assert.Equal(t, []string{"a:53", "b:53"}, dialer.dialed)
}

func TestProbe_HasInternet_NoResolver(t *testing.T) {
	probe := NewProbe(&ProbeConfig{
		Resolvers: []string{"a:53"},
		Dialer:    &fakeDialer{},
	})

	assert.False(t, probe.HasInternet(context.Background()))
}

func TestProbe_HasInternet_CheckUrlFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	probe := NewProbe(&ProbeConfig{
		Resolvers: []string{"a:53"},
		CheckUrl:  srv.URL,
		Dialer:    &fakeDialer{reachable: map[string]bool{"a:53": true}},
	})

	assert.False(t, probe.HasInternet(context.Background()))
}

func TestProbe_HasInternet_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	probe := NewProbe(&ProbeConfig{
		Resolvers: []string{"a:53"},
		CheckUrl:  url,
		Dialer:    &fakeDialer{reachable: map[string]bool{"a:53": true}},
	})

	assert.False(t, probe.HasInternet(context.Background()))
}

func TestProbe_WirelessSsid(t *testing.T) {
	tests := []struct {
		name       string
		source     SsidSource
		ssid       string
		associated bool
	}{
		{"associated", &fakeSsid{ssid: "home-network"}, "home-network", true},
		{"empty", &fakeSsid{}, "", false},
		{"tool failed", &fakeSsid{ssid: "stale", err: errors.New("exit status 255")}, "", false},
		{"no source", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := NewProbe(&ProbeConfig{Ssid: tt.source})

			ssid, ok := probe.WirelessSsid(context.Background())
			require.Equal(t, tt.associated, ok)
			assert.Equal(t, tt.ssid, ssid)
			assert.Equal(t, tt.associated, probe.IsAssociated(context.Background()))
		})
	}
}

func TestParseState(t *testing.T) {
	for _, s := range []State{Offline, Online} {
		parsed, ok := ParseState(s.String())
		require.True(t, ok)
		assert.Equal(t, s, parsed)
	}

	_, ok := ParseState("SOMEWHERE")
	assert.False(t, ok)
}
