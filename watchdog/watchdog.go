package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/network"
	"github.com/the-lightning-land/nmwatchd/setup"
)

const (
	DefaultCheckInterval  = 30 * time.Second
	DefaultGracePeriod    = 60 * time.Second
	DefaultRestartBackoff = 5 * time.Second
	maxRestartBackoff     = 5 * time.Minute
)

// Outcome of a single connectivity check.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeHealthy
	OutcomeDegraded
	OutcomeSetupLaunched
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeHealthy:
		return "healthy"
	case OutcomeDegraded:
		return "connected without internet"
	case OutcomeSetupLaunched:
		return "setup launched"
	case OutcomeBusy:
		return "in setup"
	default:
		return "invalid outcome"
	}
}

// Launcher is the part of the setup launcher the watchdog drives.
type Launcher interface {
	Launch(capabilities setup.Capabilities) bool
	InSetup() bool
	Idle() <-chan struct{}
}

type CapabilityDetector interface {
	Capabilities(ctx context.Context) (setup.Capabilities, error)
}

type Config struct {
	Probe        connectivity.Prober
	Launcher     Launcher
	Capabilities CapabilityDetector
	// Profiles decides whether the grace period applies on start. Optional.
	Profiles       network.ProfileChecker
	CheckInterval  time.Duration
	GracePeriod    time.Duration
	RestartBackoff time.Duration
	Logger         Logger
}

// check Watchdogs compliance to its interface during compile time
var _ connectivity.Reporter = (*Watchdog)(nil)

// Watchdog periodically checks connectivity and launches setup when the
// device is neither online nor associated with a wireless network.
type Watchdog struct {
	probe          connectivity.Prober
	launcher       Launcher
	capabilities   CapabilityDetector
	profiles       network.ProfileChecker
	checkInterval  time.Duration
	gracePeriod    time.Duration
	restartBackoff time.Duration
	log            Logger

	mu         sync.Mutex
	monitoring bool
	cancel     context.CancelFunc
	done       chan struct{}

	stateMtx     sync.Mutex
	state        connectivity.State
	stateChanged chan struct{}
	lastOutcome  Outcome
	lastCheck    time.Time
}

func New(config *Config) *Watchdog {
	w := &Watchdog{
		probe:          config.Probe,
		launcher:       config.Launcher,
		capabilities:   config.Capabilities,
		profiles:       config.Profiles,
		checkInterval:  config.CheckInterval,
		gracePeriod:    config.GracePeriod,
		restartBackoff: config.RestartBackoff,
		state:          connectivity.Offline,
		stateChanged:   make(chan struct{}),
	}

	if w.checkInterval <= 0 {
		w.checkInterval = DefaultCheckInterval
	}

	if w.restartBackoff <= 0 {
		w.restartBackoff = DefaultRestartBackoff
	}

	if config.Logger != nil {
		w.log = config.Logger
	} else {
		w.log = noopLogger{}
	}

	return w
}

// Start spawns the polling cycle unless it is running already.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.monitoring {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	w.monitoring = true
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx, w.done)
}

// Stop ends the polling cycle and waits for it to exit.
func (w *Watchdog) Stop() {
	w.mu.Lock()

	if !w.monitoring {
		w.mu.Unlock()
		return
	}

	w.monitoring = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done

	w.log.Infof("Wifi watchdog stopped")
}

func (w *Watchdog) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.monitoring
}

func (w *Watchdog) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.log.Infof("Wifi watchdog started")

	w.awaitGracePeriod(ctx)

	backoff := w.restartBackoff

	for {
		if w.launcher.InSetup() {
			// let setup do its thing
			select {
			case <-w.launcher.Idle():
			case <-ctx.Done():
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		_, err := w.safeCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			w.log.Errorf("Wifi watchdog crashed unexpectedly, restarting in %v: %v", backoff, err)

			if !sleep(ctx, backoff) {
				return
			}

			backoff *= 2
			if backoff > maxRestartBackoff {
				backoff = maxRestartBackoff
			}

			continue
		}

		backoff = w.restartBackoff

		if !sleep(ctx, w.checkInterval) {
			return
		}
	}
}

func (w *Watchdog) awaitGracePeriod(ctx context.Context) {
	if w.profiles == nil || w.gracePeriod <= 0 {
		return
	}

	configured, err := w.profiles.HasWifiProfile(ctx)
	if err != nil {
		w.log.Warnf("Could not look for configured wifi: %v", err)
		return
	}

	if !configured {
		return
	}

	w.log.Infof("Detected previously configured wifi, waiting %v to allow it to connect", w.gracePeriod)

	sleep(ctx, w.gracePeriod)
}

func (w *Watchdog) safeCheck(ctx context.Context) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("check panicked: %v", r)
		}
	}()

	return w.Check(ctx)
}

// Check runs a single watchdog tick. An error means the cycle can not go
// on and has to be restarted.
func (w *Watchdog) Check(ctx context.Context) (Outcome, error) {
	if w.launcher.InSetup() {
		w.setOutcome(OutcomeBusy)
		return OutcomeBusy, nil
	}

	if w.probe.HasInternet(ctx) {
		w.setState(connectivity.Online)
		w.setOutcome(OutcomeHealthy)
		return OutcomeHealthy, nil
	}

	w.setState(connectivity.Offline)

	w.log.Infof("No internet")

	if ssid, ok := w.probe.WirelessSsid(ctx); ok {
		w.log.Warnf("Connected to wifi %v, but no internet", ssid)
		w.setOutcome(OutcomeDegraded)
		return OutcomeDegraded, nil
	}

	capabilities, err := w.capabilities.Capabilities(ctx)
	if err != nil {
		// without a known touch display the managed client takes over
		w.log.Errorf("Could not detect device capabilities, assuming no touch display: %v", err)
		capabilities = setup.Capabilities{HasTouchDisplay: false}
	}

	w.log.Infof("Launching setup")

	w.launcher.Launch(capabilities)
	w.setOutcome(OutcomeSetupLaunched)

	return OutcomeSetupLaunched, nil
}

func (w *Watchdog) setOutcome(outcome Outcome) {
	w.stateMtx.Lock()
	defer w.stateMtx.Unlock()

	w.lastOutcome = outcome
	w.lastCheck = time.Now()
}

// LastOutcome returns the result and time of the most recent check.
func (w *Watchdog) LastOutcome() (Outcome, time.Time) {
	w.stateMtx.Lock()
	defer w.stateMtx.Unlock()

	return w.lastOutcome, w.lastCheck
}

func (w *Watchdog) setState(state connectivity.State) {
	w.stateMtx.Lock()
	defer w.stateMtx.Unlock()

	if w.state == state {
		return
	}

	w.log.Debugf("Connectivity changed from %v to %v", w.state, state)

	w.state = state
	close(w.stateChanged)
	w.stateChanged = make(chan struct{})
}

func (w *Watchdog) CurrentState() connectivity.State {
	w.stateMtx.Lock()
	defer w.stateMtx.Unlock()

	return w.state
}

func (w *Watchdog) WaitForStateChange(ctx context.Context, state connectivity.State) bool {
	for {
		w.stateMtx.Lock()
		if w.state != state {
			w.stateMtx.Unlock()
			return true
		}
		changed := w.stateChanged
		w.stateMtx.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
