package main

import (
	"fmt"
	"time"

	"github.com/horgh/config"
)

// Config holds a server's configuration.
//
// Every key has a default so the server runs from the command line
// alone. A config file overrides the keys it mentions.
type Config struct {
	ListenHost  string
	ServerName  string
	ServerInfo  string
	Version     string
	CreatedDate string

	// Period of time to wait before waking the server up (maximum).
	WakeupTime time.Duration

	// Period of time a client can be idle before we send it a PING.
	PingTime time.Duration

	// Period of time a client can be idle before we consider it dead.
	DeadTime time.Duration
}

func defaultConfig() Config {
	return Config{
		ListenHost:  "0.0.0.0",
		ServerName:  "localhost",
		ServerInfo:  "ircd",
		Version:     "ircd-0.1.0",
		CreatedDate: time.Now().Format("Mon Jan 2 2006"),
		WakeupTime:  time.Second,
		PingTime:    2 * time.Minute,
		DeadTime:    5 * time.Minute,
	}
}

// checkAndParseConfig loads the config file, if any, on top of the
// defaults. Duration keys are parsed into alternate representations.
func (s *Server) checkAndParseConfig(file string) error {
	s.Config = defaultConfig()

	if len(file) == 0 {
		return nil
	}

	configMap, err := config.ReadStringMap(file)
	if err != nil {
		return err
	}

	stringKeys := map[string]*string{
		"listen-host":  &s.Config.ListenHost,
		"server-name":  &s.Config.ServerName,
		"server-info":  &s.Config.ServerInfo,
		"version":      &s.Config.Version,
		"created-date": &s.Config.CreatedDate,
	}
	for key, target := range stringKeys {
		if v, exists := configMap[key]; exists && len(v) > 0 {
			*target = v
		}
	}

	durationKeys := map[string]*time.Duration{
		"wakeup-time": &s.Config.WakeupTime,
		"ping-time":   &s.Config.PingTime,
		"dead-time":   &s.Config.DeadTime,
	}
	for key, target := range durationKeys {
		v, exists := configMap[key]
		if !exists {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s is in invalid format: %s", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
		*target = d
	}

	return nil
}
