package main

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/the-lightning-land/nmwatchd/device"
)

const (
	defaultConfigFile = "/etc/nmwatchd/nmwatchd.conf"
	defaultDataDir    = "/var/lib/nmwatchd"
	defaultBusUrl     = "ws://127.0.0.1:8181/core"
)

type watchdogConfig struct {
	Interval        time.Duration `long:"interval" description:"Time between two connectivity checks" default:"30s"`
	Grace           time.Duration `long:"grace" description:"Delay before the first check when a wifi profile exists" default:"60s"`
	InternetTimeout time.Duration `long:"internettimeout" description:"How long to wait for internet after connecting to a network" default:"90s"`
	RestartBackoff  time.Duration `long:"restartbackoff" description:"Initial delay before the watchdog restarts after a failure" default:"5s"`
}

type setupConfig struct {
	HandshakeTimeout time.Duration `long:"handshaketimeout" description:"How long a setup client has to confirm it took over, 0 disables the timeout" default:"2m"`
	Display          string        `long:"display" description:"Display capability detection" choice:"auto" choice:"touch" choice:"headless" default:"auto"`
}

type probeConfig struct {
	Dns     []string      `long:"dns" description:"DNS resolver host:port used to check reachability, may be repeated"`
	Url     string        `long:"url" description:"URL which must answer with a 2xx status when online, disabled when empty" default:"http://www.msftncsi.com/ncsi.txt"`
	Timeout time.Duration `long:"timeout" description:"Timeout of a single reachability probe" default:"5s"`
}

type busConfig struct {
	Url string `long:"url" description:"Websocket url of the message bus"`
}

type apiConfig struct {
	Listen string `long:"listen" description:"Address of the local status api, disabled when empty"`
}

type config struct {
	ShowVersion bool            `long:"version" description:"Display version information and exit"`
	Debug       bool            `long:"debug" description:"Start in debug mode"`
	ConfigFile  string          `long:"configfile" description:"Path to an INI configuration file"`
	DataDir     string          `long:"datadir" description:"Directory of the connection database"`
	Ssid        string          `long:"ssid" description:"Where the SSID of the associated network is read from" choice:"iwgetid" choice:"wpa" default:"iwgetid"`
	Interface   string          `long:"interface" description:"Wireless network interface" default:"wlan0"`
	Bus         *busConfig      `group:"Bus" namespace:"bus"`
	Watchdog    *watchdogConfig `group:"Watchdog" namespace:"watchdog"`
	Setup       *setupConfig    `group:"Setup" namespace:"setup"`
	Probe       *probeConfig    `group:"Probe" namespace:"probe"`
	Api         *apiConfig      `group:"Api" namespace:"api"`
}

func defaultConfig() *config {
	return &config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		Bus: &busConfig{
			Url: defaultBusUrl,
		},
		Watchdog: &watchdogConfig{},
		Setup:    &setupConfig{},
		Probe:    &probeConfig{},
		Api:      &apiConfig{},
	}
}

// loadConfig parses the command line once to find the config file, reads
// that file and parses the command line again so flags take precedence.
func loadConfig(args []string) (*config, error) {
	preCfg := defaultConfig()

	_, err := flags.NewParser(preCfg, flags.Default).ParseArgs(args)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	parser := flags.NewParser(cfg, flags.Default)

	if preCfg.ConfigFile != "" {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			// a missing default config file is fine
			if _, ok := err.(*os.PathError); !ok || preCfg.ConfigFile != defaultConfigFile {
				return nil, errors.Errorf("could not read config file %v: %v", preCfg.ConfigFile, err)
			}
		}
	}

	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	err = validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.Bus.Url == "" {
		return errors.New("no message bus url configured")
	}

	if cfg.Watchdog.Interval <= 0 {
		return errors.Errorf("watchdog interval must be positive, got %v", cfg.Watchdog.Interval)
	}

	if cfg.Watchdog.Grace < 0 {
		return errors.Errorf("watchdog grace period must not be negative, got %v", cfg.Watchdog.Grace)
	}

	if cfg.Watchdog.InternetTimeout <= 0 {
		return errors.Errorf("internet timeout must be positive, got %v", cfg.Watchdog.InternetTimeout)
	}

	if cfg.Setup.HandshakeTimeout < 0 {
		return errors.Errorf("handshake timeout must not be negative, got %v", cfg.Setup.HandshakeTimeout)
	}

	return nil
}

func (cfg *config) displayMode() device.DisplayMode {
	return device.DisplayMode(cfg.Setup.Display)
}
