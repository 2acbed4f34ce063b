// Package supervisor implements the Connection Supervisor component.
//
// The Connection Supervisor:
//   - Maintains one authenticated WebSocket connection to the gateway
//   - Tunnels through a forward proxy when one is configured
//   - Answers the server's auth challenge with the client identity
//   - Runs the periodic heartbeat and detects stale connections
//   - Tears down and reconnects after a fixed delay, forever
package supervisor
