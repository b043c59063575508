package setup

import (
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/nmwatchd/bus"
)

type recordingEmitter struct {
	mu     sync.Mutex
	types  []string
	err    error
	onEmit func(msg *bus.Message)
}

func (r *recordingEmitter) Emit(msg *bus.Message) error {
	r.mu.Lock()
	r.types = append(r.types, msg.Type)
	err := r.err
	onEmit := r.onEmit
	r.mu.Unlock()

	if onEmit != nil {
		onEmit(msg)
	}

	return err
}

func (r *recordingEmitter) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.types...)
}

func (r *recordingEmitter) Count(msgType string) int {
	n := 0
	for _, t := range r.Types() {
		if t == msgType {
			n++
		}
	}

	return n
}

func newLauncher(timeout time.Duration) (*Launcher, *recordingEmitter) {
	emitter := &recordingEmitter{}

	return NewLauncher(&Config{
		Registry:         NewRegistry(),
		Emitter:          emitter,
		HandshakeTimeout: timeout,
	}), emitter
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLauncher_LaunchHeadless(t *testing.T) {
	launcher, emitter := newLauncher(0)

	assert.True(t, launcher.Launch(Capabilities{HasTouchDisplay: false}))

	assert.Equal(t, []string{
		SignalSetupStarted,
		"ovos.phal.nm.activate.managed.client",
	}, emitter.Types())
	assert.True(t, launcher.InSetup())
}

func TestLauncher_LaunchTouch(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Launch(Capabilities{HasTouchDisplay: true})

	assert.Equal(t, []string{
		SignalSetupStarted,
		SignalClientModeSelector,
	}, emitter.Types())
	assert.Zero(t, emitter.Count("ovos.phal.nm.activate.gui.client"))
	assert.Zero(t, emitter.Count("ovos.phal.nm.activate.managed.client"))
}

func TestLauncher_LaunchTwice(t *testing.T) {
	launcher, emitter := newLauncher(0)

	assert.True(t, launcher.Launch(Capabilities{}))
	assert.False(t, launcher.Launch(Capabilities{}))

	assert.Equal(t, 1, emitter.Count(SignalSetupStarted))
}

func TestLauncher_LaunchEmitFailure(t *testing.T) {
	launcher, emitter := newLauncher(0)
	emitter.err = errors.New("bus down")

	launcher.Launch(Capabilities{})

	assert.True(t, launcher.InSetup())
}

func TestLauncher_Select(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Launch(Capabilities{HasTouchDisplay: true})
	launcher.Select(GuiClient)
	launcher.Select(ClientID("bluetooth"))

	assert.Equal(t, 1, emitter.Count("ovos.phal.nm.activate.gui.client"))
	assert.Equal(t, 1, emitter.Count(SignalSetupStarted))
	assert.Equal(t, NoClient, launcher.Registry().Active())
}

func TestLauncher_SelectStartsSetup(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Select(ManagedClient)

	assert.True(t, launcher.InSetup())
	assert.Equal(t, []string{
		SignalSetupStarted,
		"ovos.phal.nm.activate.managed.client",
	}, emitter.Types())

	// the session is announced once, a watchdog launch is a no-op
	assert.False(t, launcher.Launch(Capabilities{}))
	launcher.Select(GuiClient)
	assert.Equal(t, 1, emitter.Count(SignalSetupStarted))
}

func TestLauncher_TeardownActiveClient(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Launch(Capabilities{})
	idle := launcher.Idle()
	require.False(t, isClosed(idle))

	launcher.Registry().SetActive(ManagedClient)
	launcher.Teardown()

	assert.Equal(t, 1, emitter.Count("ovos.phal.nm.cleanup.managed.client"))
	assert.Zero(t, emitter.Count("ovos.phal.nm.cleanup.gui.client"))
	assert.False(t, launcher.InSetup())
	assert.True(t, isClosed(idle))
	assert.Equal(t, NoClient, launcher.Registry().Active())
}

func TestLauncher_TeardownWithoutClient(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Launch(Capabilities{})
	before := len(emitter.Types())

	launcher.Teardown()
	launcher.Teardown()

	assert.Len(t, emitter.Types(), before)
	assert.False(t, launcher.InSetup())
}

func TestLauncher_TeardownUnknownClient(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Registry().SetActive(ClientID("bluetooth"))
	launcher.Teardown()

	assert.Empty(t, emitter.Types())
	assert.Equal(t, NoClient, launcher.Registry().Active())
}

func TestLauncher_Deactivate(t *testing.T) {
	launcher, emitter := newLauncher(0)

	launcher.Registry().SetActive(GuiClient)
	launcher.Deactivate()

	assert.Equal(t, []string{"ovos.phal.nm.deactivate.gui.client"}, emitter.Types())
	assert.Equal(t, NoClient, launcher.Registry().Active())

	launcher.Deactivate()
	assert.Len(t, emitter.Types(), 1)
}

func TestLauncher_HandshakeConfirmed(t *testing.T) {
	launcher, emitter := newLauncher(20 * time.Millisecond)

	launcher.Launch(Capabilities{})
	require.Equal(t, ManagedClient, launcher.Pending())

	launcher.Registry().SetActive(ManagedClient)
	launcher.Confirm(ManagedClient)
	assert.Equal(t, NoClient, launcher.Pending())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, launcher.InSetup())
	assert.Zero(t, emitter.Count("ovos.phal.nm.cleanup.managed.client"))
}

func TestLauncher_HandshakeExpired(t *testing.T) {
	launcher, emitter := newLauncher(20 * time.Millisecond)

	launcher.Launch(Capabilities{})
	idle := launcher.Idle()

	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("setup was not torn down after the handshake timed out")
	}

	assert.False(t, launcher.InSetup())
	assert.Equal(t, 1, emitter.Count("ovos.phal.nm.cleanup.managed.client"))
	assert.Equal(t, NoClient, launcher.Pending())
}

func TestLauncher_HandshakeExpiredButOwned(t *testing.T) {
	launcher, emitter := newLauncher(20 * time.Millisecond)

	launcher.Launch(Capabilities{})
	launcher.Registry().SetActive(GuiClient)

	time.Sleep(60 * time.Millisecond)

	assert.True(t, launcher.InSetup())
	assert.Zero(t, emitter.Count("ovos.phal.nm.cleanup.managed.client"))
}

func TestLauncher_RecoversFromPanickingEmitter(t *testing.T) {
	launcher := NewLauncher(&Config{Emitter: panicEmitter{}})

	assert.NotPanics(t, func() {
		launcher.Launch(Capabilities{})
	})
	assert.True(t, launcher.InSetup())
}

type panicEmitter struct{}

func (panicEmitter) Emit(msg *bus.Message) error {
	panic("boom")
}

func TestLauncher_HandshakeExpiredKeepsNewSession(t *testing.T) {
	launcher, emitter := newLauncher(10 * time.Millisecond)

	var once sync.Once
	relaunched := make(chan struct{})

	// a new session starts while the expired one is being cleaned up
	emitter.mu.Lock()
	emitter.onEmit = func(msg *bus.Message) {
		if msg.Type != "ovos.phal.nm.cleanup.managed.client" {
			return
		}

		once.Do(func() {
			launcher.Teardown()
			launcher.Launch(Capabilities{HasTouchDisplay: true})
			close(relaunched)
		})
	}
	emitter.mu.Unlock()

	launcher.Launch(Capabilities{})

	select {
	case <-relaunched:
	case <-time.After(5 * time.Second):
		t.Fatal("handshake never expired")
	}

	require.Eventually(t, func() bool { return launcher.Pending() == NoClient }, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, launcher.InSetup())
	assert.False(t, isClosed(launcher.Idle()))
	assert.Equal(t, 2, emitter.Count(SignalSetupStarted))
	assert.Equal(t, 1, emitter.Count(SignalClientModeSelector))
}
