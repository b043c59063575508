package setup

import (
	"sync"
)

// ClientID names the front-end owning a setup session.
type ClientID string

const (
	NoClient      ClientID = ""
	GuiClient     ClientID = "gui"
	ManagedClient ClientID = "managed"
)

// plugin names announced by existing front-ends
var clientAliases = map[string]ClientID{
	"ovos-PHAL-plugin-gui-network-client": GuiClient,
	"ovos-PHAL-plugin-balena-wifi":        ManagedClient,
	"balena":                              ManagedClient,
}

// ParseClientID normalises known aliases. Unknown identifiers are kept
// verbatim and simply never match a client downstream.
func ParseClientID(s string) ClientID {
	if id, ok := clientAliases[s]; ok {
		return id
	}

	return ClientID(s)
}

// Known reports whether signals exist for this client.
func (c ClientID) Known() bool {
	return c == GuiClient || c == ManagedClient
}

// Registry holds the client owning the current setup session.
// The last writer wins, there is no ownership negotiation.
type Registry struct {
	mu     sync.RWMutex
	active ClientID
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) SetActive(id ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = id
}

func (r *Registry) Active() ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active
}

func (r *Registry) ClearActive() {
	r.SetActive(NoClient)
}
