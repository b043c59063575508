package setup

import (
	"sync"
	"time"

	"github.com/the-lightning-land/nmwatchd/bus"
)

// Capabilities of the device that decide which front-end runs the setup.
type Capabilities struct {
	HasTouchDisplay bool
}

// Emitter publishes signals on the message bus.
type Emitter interface {
	Emit(msg *bus.Message) error
}

type Config struct {
	Registry *Registry
	Emitter  Emitter
	// HandshakeTimeout bounds the time between requesting a client's
	// activation and the client confirming ownership. Zero disables it.
	HandshakeTimeout time.Duration
	Logger           Logger
}

// activation is a client that was asked to take over but has not
// confirmed ownership yet.
type activation struct {
	client  ClientID
	session uint64
	timer   *time.Timer
}

// Launcher starts and tears down setup sessions.
type Launcher struct {
	registry         *Registry
	emitter          Emitter
	handshakeTimeout time.Duration
	log              Logger

	mu      sync.Mutex
	inSetup bool
	// session is bumped every time a setup session begins
	session uint64
	idle    chan struct{}
	pending *activation
}

func NewLauncher(config *Config) *Launcher {
	launcher := &Launcher{
		registry:         config.Registry,
		emitter:          config.Emitter,
		handshakeTimeout: config.HandshakeTimeout,
		idle:             make(chan struct{}),
	}

	close(launcher.idle)

	if launcher.registry == nil {
		launcher.registry = NewRegistry()
	}

	if config.Logger != nil {
		launcher.log = config.Logger
	} else {
		launcher.log = noopLogger{}
	}

	return launcher
}

func (l *Launcher) Registry() *Registry {
	return l.registry
}

// InSetup reports whether a setup session is believed to be active.
func (l *Launcher) InSetup() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inSetup
}

// Idle returns a channel that is closed while no setup session is active.
func (l *Launcher) Idle() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.idle
}

// Pending returns the client whose activation awaits confirmation.
func (l *Launcher) Pending() ClientID {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		return NoClient
	}

	return l.pending.client
}

// Launch starts a setup session unless one is active already and reports
// whether it did. Touch devices let the user pick a front-end, everything
// else goes straight to the managed client.
func (l *Launcher) Launch(capabilities Capabilities) bool {
	if !l.beginSetup() {
		l.log.Debugf("Setup already in progress")
		return false
	}

	l.log.Infof("Launching network setup")

	l.emit(bus.NewMessage(SignalSetupStarted, nil))

	if capabilities.HasTouchDisplay {
		l.emit(bus.NewMessage(SignalClientModeSelector, nil))
	} else {
		l.activate(ManagedClient)
	}

	return true
}

// Select asks the given client to take over the setup session.
func (l *Launcher) Select(client ClientID) {
	if !client.Known() {
		l.log.Warnf("Ignoring selection of unknown client %q", client)
		return
	}

	if l.beginSetup() {
		l.log.Infof("Setup started by selecting client %q", client)
		l.emit(bus.NewMessage(SignalSetupStarted, nil))
	}

	l.activate(client)
}

// Confirm completes the ownership handshake for the given client.
func (l *Launcher) Confirm(client ClientID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		return
	}

	if l.pending.client != client {
		l.log.Warnf("Client %q took over while %q was being activated", client, l.pending.client)
	} else {
		l.log.Infof("Client %q confirmed ownership of setup", client)
	}

	l.pending.timer.Stop()
	l.pending = nil
}

// Deactivate asks the previously active client to step down and clears
// the registry.
func (l *Launcher) Deactivate() {
	previous := l.registry.Active()

	if previous.Known() {
		l.log.Infof("Deactivating client %q", previous)
		l.emit(bus.NewMessage(deactivateSignal(previous), nil))
	} else if previous != NoClient {
		l.log.Debugf("No deactivation signal for client %q", previous)
	}

	l.registry.ClearActive()
}

// Teardown cleans up the active client and ends the setup session.
// Calling it without an active session is harmless.
func (l *Launcher) Teardown() {
	active := l.registry.Active()

	if active.Known() {
		l.log.Infof("Cleaning up client %q", active)
		l.emit(bus.NewMessage(cleanupSignal(active), nil))
	}

	l.registry.ClearActive()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		l.pending.timer.Stop()
		l.pending = nil
	}

	l.endSetupLocked()
}

func (l *Launcher) beginSetup() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inSetup {
		return false
	}

	l.inSetup = true
	l.session++
	l.idle = make(chan struct{})

	return true
}

func (l *Launcher) endSetupLocked() {
	if !l.inSetup {
		return
	}

	l.inSetup = false
	close(l.idle)
}

func (l *Launcher) activate(client ClientID) {
	l.log.Infof("Activating client %q", client)

	l.emit(bus.NewMessage(activateSignal(client), nil))

	if l.handshakeTimeout <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		l.pending.timer.Stop()
	}

	a := &activation{client: client, session: l.session}
	a.timer = time.AfterFunc(l.handshakeTimeout, func() {
		l.expire(a)
	})

	l.pending = a
}

// expire treats an activation that was never confirmed as failed.
func (l *Launcher) expire(a *activation) {
	l.mu.Lock()

	if l.pending != a {
		l.mu.Unlock()
		return
	}

	l.pending = nil
	l.mu.Unlock()

	if owner := l.registry.Active(); owner != NoClient {
		l.log.Debugf("Activation of %q expired but %q owns setup", a.client, owner)
		return
	}

	l.log.Warnf("Client %q did not confirm ownership within %v, tearing down setup", a.client, l.handshakeTimeout)

	l.emit(bus.NewMessage(cleanupSignal(a.client), nil))

	l.mu.Lock()
	defer l.mu.Unlock()

	// a new activation or a new session may have started in the meantime
	if l.pending == nil && l.session == a.session {
		l.endSetupLocked()
	}
}

func (l *Launcher) emit(msg *bus.Message) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("Emitting %v panicked: %v", msg.Type, r)
		}
	}()

	err := l.emitter.Emit(msg)
	if err != nil {
		l.log.Errorf("Could not emit %v: %v", msg.Type, err)
	}
}
