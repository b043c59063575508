package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/nmwatchd/api"
	"github.com/the-lightning-land/nmwatchd/bus"
	"github.com/the-lightning-land/nmwatchd/connectivity"
	"github.com/the-lightning-land/nmwatchd/device"
	"github.com/the-lightning-land/nmwatchd/gateway"
	"github.com/the-lightning-land/nmwatchd/netdb"
	"github.com/the-lightning-land/nmwatchd/network"
	"github.com/the-lightning-land/nmwatchd/setup"
	"github.com/the-lightning-land/nmwatchd/watchdog"
)

const busConnectTimeout = 30 * time.Second

var (
	// commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// nmwatchdMain is the true entry point for nmwatchd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func nmwatchdMain() error {
	// Load CLI configuration and defaults
	cfg, err := loadConfig(os.Args[1:])
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	setupLogging(cfg.Debug)

	if cfg.Debug {
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	// nmwatchd.db remembers the networks joined through the daemon
	db, err := netdb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open nmwatchd.db: %v", err)
	}

	log.Infof("Opened nmwatchd.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close nmwatchd.db: %v", err)
		} else {
			log.Info("Closed nmwatchd.db.")
		}
	}()

	// The message bus connection every other subsystem talks through
	busClient := bus.NewClient(&bus.Config{
		Url:    cfg.Bus.Url,
		Logger: newSubLogger("bus"),
	})

	err = busClient.Start()
	if err != nil {
		return errors.Errorf("Could not start message bus client: %v", err)
	}

	defer func() {
		err := busClient.Stop()
		if err != nil {
			log.Errorf("Could not properly stop message bus client: %v", err)
		} else {
			log.Info("Stopped message bus client.")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), busConnectTimeout)
	err = busClient.WaitConnected(ctx)
	cancel()
	if err != nil {
		// the client keeps reconnecting in the background
		log.Warnf("Message bus not reachable at %v yet, continuing", cfg.Bus.Url)
	}

	runner := &network.ExecRunner{}

	// Where the SSID of the associated network comes from
	var ssid connectivity.SsidSource

	switch cfg.Ssid {
	case "iwgetid":
		ssid = &network.IwgetidSsid{Runner: runner}

		log.Info("Reading SSID through iwgetid.")
	case "wpa":
		wpaSsid := network.NewWpaSsid(cfg.Interface)

		defer func() {
			err := wpaSsid.Close()
			if err != nil {
				log.Errorf("Could not close wpa_supplicant connection: %v", err)
			}
		}()

		ssid = wpaSsid

		log.Infof("Reading SSID from wpa_supplicant on %v.", cfg.Interface)
	default:
		return errors.Errorf("Unknown ssid source %v", cfg.Ssid)
	}

	probe := connectivity.NewProbe(&connectivity.ProbeConfig{
		Resolvers: cfg.Probe.Dns,
		CheckUrl:  cfg.Probe.Url,
		Timeout:   cfg.Probe.Timeout,
		Ssid:      ssid,
		Logger:    newSubLogger("probe"),
	})

	if probe.CheckUrl() != "" {
		log.Infof("Checking internet access through %v.", probe.CheckUrl())
	} else {
		log.Info("Checking internet access through DNS resolvers only.")
	}

	nmcli := network.NewNmcliNetwork(&network.Config{
		Interface: cfg.Interface,
		Runner:    runner,
		Logger:    newSubLogger("network"),
	})

	log.Infof("Created NetworkManager network on %v.", cfg.Interface)

	dev := device.New(&device.Config{
		Mode:   cfg.displayMode(),
		Bus:    busClient,
		Logger: newSubLogger("device"),
	})

	log.Infof("Created device with %v display detection.", cfg.Setup.Display)

	launcher := setup.NewLauncher(&setup.Config{
		Registry:         setup.NewRegistry(),
		Emitter:          busClient,
		HandshakeTimeout: cfg.Setup.HandshakeTimeout,
		Logger:           newSubLogger("setup"),
	})

	wd := watchdog.New(&watchdog.Config{
		Probe:          probe,
		Launcher:       launcher,
		Capabilities:   dev,
		Profiles:       network.AnyProfile(nmcli, db),
		CheckInterval:  cfg.Watchdog.Interval,
		GracePeriod:    cfg.Watchdog.Grace,
		RestartBackoff: cfg.Watchdog.RestartBackoff,
		Logger:         newSubLogger("watchdog"),
	})

	log.Infof("Created watchdog checking every %v.", cfg.Watchdog.Interval)

	var a gateway.Api
	if cfg.Api.Listen != "" {
		a = api.New(&api.Config{
			Log: newSubLogger("api"),
		})

		log.Infof("Created API")
	}

	// central controller translating bus signals into network and setup actions
	gw := gateway.New(&gateway.Config{
		Bus:             busClient,
		Launcher:        launcher,
		Watchdog:        wd,
		Probe:           probe,
		Network:         nmcli,
		DB:              db,
		Display:         dev,
		InternetTimeout: cfg.Watchdog.InternetTimeout,
		Api:             a,
		ApiListen:       cfg.Api.Listen,
		Logger:          newSubLogger("gateway"),
	})

	log.Infof("Created gateway.")

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping gateway...")
		gw.Shutdown()
	}()

	// blocks until the gateway is shut down
	err = gw.Run()
	if err != nil {
		return errors.Errorf("Failed running gateway: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := nmwatchdMain(); err != nil {
		log.WithError(err).Println("Failed running nmwatchd.")
		os.Exit(1)
	}
}
