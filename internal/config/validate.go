package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"globalmkh/internal/input"
	"globalmkh/internal/logging"
)

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.General.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("general.log_level: %w", err))
	}

	if c.API.Enabled {
		if err := validateListen(c.API.Listen); err != nil {
			errs = append(errs, fmt.Errorf("api.listen: %w", err))
		}
	}

	if c.Capture.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("capture.queue_size: must not be negative"))
	}
	for _, name := range c.Capture.AutoSubscribe {
		if _, err := input.ParseEventName(name); err != nil {
			errs = append(errs, fmt.Errorf("capture.auto_subscribe: %w", err))
		}
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			errs = append(errs, fmt.Errorf("journal.path: required when the journal is enabled"))
		}
		if len(c.Journal.Events) == 0 {
			errs = append(errs, fmt.Errorf("journal.events: at least one event is required"))
		}
	}
	for _, name := range c.Journal.Events {
		if _, err := input.ParseEventName(name); err != nil {
			errs = append(errs, fmt.Errorf("journal.events: %w", err))
		}
	}

	return errors.Join(errs...)
}

func validateListen(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", portStr)
	}
	return nil
}
