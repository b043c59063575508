package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// subsystem loggers share the level of the global logger
var logLevel = log.InfoLevel

func setupLogging(debug bool) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if debug {
		logLevel = log.DebugLevel
	}

	log.SetLevel(logLevel)
}

func newSubLogger(system string) *log.Entry {
	logger := log.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logLevel)

	return logger.WithField("system", system)
}
