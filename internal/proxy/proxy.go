// Package proxy parses forward-proxy descriptors from URL strings.
package proxy

import (
	"errors"
	"fmt"
	"net/url"
)

// Errors
var (
	ErrPartialCredentials = errors.New("proxy credentials require both username and password")
	ErrMissingHost        = errors.New("proxy URL has no host")
)

// Descriptor describes a forward proxy the transport tunnels through.
// Credentials are percent-decoded; either both are present or neither is.
type Descriptor struct {
	Scheme   string
	Host     string // host without port
	Port     string // may be empty if the URL carries no port
	Username string
	Password string
}

// Parse builds a Descriptor from a proxy URL string.
// An empty string means no proxy and yields a nil Descriptor.
func Parse(raw string) (*Descriptor, error) {
	if raw == "" {
		return nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, ErrMissingHost
	}

	d := &Descriptor{
		Scheme: u.Scheme,
		Host:   u.Hostname(),
		Port:   u.Port(),
	}

	if u.User != nil {
		// url.Userinfo percent-decodes both parts.
		username := u.User.Username()
		password, hasPassword := u.User.Password()

		if username == "" || !hasPassword || password == "" {
			return nil, ErrPartialCredentials
		}

		d.Username = username
		d.Password = password
	}

	return d, nil
}

// URL reassembles the descriptor into a *url.URL suitable for a
// proxy-aware dialer. Credentials are re-encoded by url.UserPassword.
func (d *Descriptor) URL() *url.URL {
	host := d.Host
	if d.Port != "" {
		host = d.Host + ":" + d.Port
	}

	u := &url.URL{
		Scheme: d.Scheme,
		Host:   host,
	}
	if d.Username != "" {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	return u
}

// String returns the proxy URL with the password redacted.
func (d *Descriptor) String() string {
	u := d.URL()
	if u.User != nil {
		u.User = url.User(d.Username)
	}
	return u.String()
}
