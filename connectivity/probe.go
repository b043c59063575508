package connectivity

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout = 5 * time.Second

	// DefaultCheckUrl answers with a 2xx status only on an open internet
	// link, captive portals redirect it.
	DefaultCheckUrl = "http://www.msftncsi.com/ncsi.txt"
)

var defaultResolvers = []string{"1.1.1.1:53", "8.8.8.8:53"}

// Prober answers whether the device is online and which wireless network it
// is associated with. Implementations never fail: any error is reported as
// offline or as an absent SSID.
type Prober interface {
	HasInternet(ctx context.Context) bool
	WirelessSsid(ctx context.Context) (string, bool)
	IsAssociated(ctx context.Context) bool
}

// SsidSource queries the SSID of the currently associated wireless network.
// An empty SSID or an error both mean "not associated".
type SsidSource interface {
	Ssid(ctx context.Context) (string, error)
}

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type ProbeConfig struct {
	// Resolvers are host:port pairs of DNS servers, a TCP connection to any
	// of them counts as a working link.
	Resolvers []string
	// CheckUrl must answer with a 2xx status once the link works.
	// An empty value skips the HTTP step.
	CheckUrl string
	Timeout  time.Duration
	Ssid     SsidSource
	Dialer   Dialer
	Client   *http.Client
	Logger   Logger
}

// check Probes compliance to its interface during compile time
var _ Prober = (*Probe)(nil)

type Probe struct {
	resolvers []string
	checkUrl  string
	timeout   time.Duration
	ssid      SsidSource
	dialer    Dialer
	client    *http.Client
	log       Logger
}

func NewProbe(config *ProbeConfig) *Probe {
	probe := &Probe{
		resolvers: config.Resolvers,
		checkUrl:  config.CheckUrl,
		timeout:   config.Timeout,
		ssid:      config.Ssid,
		dialer:    config.Dialer,
		client:    config.Client,
	}

	if len(probe.resolvers) == 0 {
		probe.resolvers = defaultResolvers
	}

	if probe.timeout <= 0 {
		probe.timeout = defaultTimeout
	}

	if probe.dialer == nil {
		probe.dialer = &net.Dialer{}
	}

	if probe.client == nil {
		probe.client = &http.Client{Timeout: probe.timeout}
	}

	if config.Logger != nil {
		probe.log = config.Logger
	} else {
		probe.log = noopLogger{}
	}

	return probe
}

// CheckUrl is the url of the HTTP step, empty when it is skipped.
func (p *Probe) CheckUrl() string {
	return p.checkUrl
}

func (p *Probe) HasInternet(ctx context.Context) bool {
	if !p.resolverReachable(ctx) {
		return false
	}

	if p.checkUrl == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.checkUrl, nil)
	if err != nil {
		p.log.Warnf("Could not build check request for %v: %v", p.checkUrl, err)
		return false
	}

	res, err := p.client.Do(req)
	if err != nil {
		p.log.Debugf("Check request to %v failed: %v", p.checkUrl, err)
		return false
	}

	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode >= 200 && res.StatusCode < 300
}

func (p *Probe) resolverReachable(ctx context.Context) bool {
	for _, resolver := range p.resolvers {
		dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
		conn, err := p.dialer.DialContext(dialCtx, "tcp", resolver)
		cancel()

		if err != nil {
			p.log.Debugf("Resolver %v unreachable: %v", resolver, err)
			continue
		}

		_ = conn.Close()

		return true
	}

	return false
}

func (p *Probe) WirelessSsid(ctx context.Context) (string, bool) {
	if p.ssid == nil {
		return "", false
	}

	ssid, err := p.ssid.Ssid(ctx)
	if err != nil {
		p.log.Debugf("No wireless association: %v", err)
		return "", false
	}

	if ssid == "" {
		return "", false
	}

	return ssid, true
}

func (p *Probe) IsAssociated(ctx context.Context) bool {
	_, ok := p.WirelessSsid(ctx)
	return ok
}
