package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGatewayURL        = "wss://gateway.ulnk.network:4650/"
	DefaultGatewayOrigin     = "https://app.ulnk.network"
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultProtocolVersion   = "4.26.2"
	DefaultConnectTimeout    = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleAfter        = 45 * time.Second
	DefaultRetryDelay        = 10 * time.Second
	DefaultLogLevel          = "info"
)

func (c *UplinkConfig) applyDefaults() {
	if c.Gateway.URL == "" {
		c.Gateway.URL = DefaultGatewayURL
	}
	if c.Gateway.Origin == "" {
		c.Gateway.Origin = DefaultGatewayOrigin
	}

	if c.Node.UserAgent == "" {
		c.Node.UserAgent = DefaultUserAgent
	}
	if c.Node.Version == "" {
		c.Node.Version = DefaultProtocolVersion
	}

	if c.Timing.ConnectTimeout == 0 {
		c.Timing.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Timing.WriteTimeout == 0 {
		c.Timing.WriteTimeout = DefaultWriteTimeout
	}
	if c.Timing.HeartbeatInterval == 0 {
		c.Timing.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Timing.StaleAfter == 0 {
		c.Timing.StaleAfter = DefaultStaleAfter
	}
	if c.Timing.RetryDelay == 0 {
		c.Timing.RetryDelay = DefaultRetryDelay
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
