package config

import (
	"errors"
	"fmt"

	"github.com/rgordeev/uplink/internal/proxy"
)

// Validate checks that all required fields are set and values are valid.
// Proxy credentials are checked here so a malformed proxy URL fails
// before any connection attempt.
func (c *UplinkConfig) Validate() error {
	if c.Node.UserID == "" {
		return errors.New("node.user_id is required")
	}

	if c.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}

	if _, err := proxy.Parse(c.Proxy.URL); err != nil {
		return fmt.Errorf("proxy.url: %w", err)
	}

	if c.Timing.ConnectTimeout < 0 {
		return errors.New("timing.connect_timeout must be >= 0")
	}
	if c.Timing.WriteTimeout < 0 {
		return errors.New("timing.write_timeout must be >= 0")
	}
	if c.Timing.HeartbeatInterval < 0 {
		return errors.New("timing.heartbeat_interval must be >= 0")
	}
	if c.Timing.StaleAfter < 0 {
		return errors.New("timing.stale_after must be >= 0")
	}
	if c.Timing.RetryDelay < 0 {
		return errors.New("timing.retry_delay must be >= 0")
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	return nil
}
