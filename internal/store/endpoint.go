package store

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/zalando/go-keyring"
)

// keyringScheme marks a password that should be resolved from the OS
// keyring instead of being used literally: "keyring:<service>/<user>".
const keyringScheme = "keyring:"

// Endpoint describes how to reach one cache store.
type Endpoint struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`

	TLS           bool `yaml:"tls,omitempty"`
	TLSSkipVerify bool `yaml:"tls_skip_verify,omitempty"`
}

// Addr returns the host:port address of the endpoint. IPv6 hosts are
// bracketed.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String renders the endpoint without credentials.
func (e Endpoint) String() string {
	if e.DB > 0 {
		return fmt.Sprintf("%s/%d", e.Addr(), e.DB)
	}
	return e.Addr()
}

// ParseEndpoint parses a connection string of the form
//
//	[redis://|rediss://][user[:password]@]host[:port][/db]
//
// rediss:// enables TLS. IPv6 literals must be bracketed to carry a
// port ("[::1]:6380"); a bare literal ("::1") gets the default port.
// The password part may be a keyring reference ("keyring:service/user"),
// resolved lazily by ResolvePassword.
func ParseEndpoint(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}

	ep := Endpoint{Port: 6379}

	rest := raw
	switch {
	case strings.HasPrefix(rest, "rediss://"):
		ep.TLS = true
		rest = strings.TrimPrefix(rest, "rediss://")
	case strings.HasPrefix(rest, "redis://"):
		rest = strings.TrimPrefix(rest, "redis://")
	}

	// Split credentials from address
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		cred := rest[:at]
		rest = rest[at+1:]
		if colon := strings.Index(cred, ":"); colon >= 0 {
			ep.Username = cred[:colon]
			ep.Password = cred[colon+1:]
		} else {
			ep.Username = cred
		}
	}

	// Split database index from address
	if slash := strings.Index(rest, "/"); slash >= 0 {
		dbPart := rest[slash+1:]
		rest = rest[:slash]
		if dbPart != "" {
			db, err := strconv.Atoi(dbPart)
			if err != nil || db < 0 {
				return Endpoint{}, fmt.Errorf("invalid database index %q in endpoint %q", dbPart, raw)
			}
			ep.DB = db
		}
	}

	// Split port from host
	host := rest
	switch {
	case strings.HasPrefix(rest, "["):
		// Bracketed IPv6 literal: [::1] or [::1]:6380
		end := strings.Index(rest, "]")
		if end < 0 {
			return Endpoint{}, fmt.Errorf("missing ']' in endpoint %q", raw)
		}
		host = rest[1:end]
		if tail := rest[end+1:]; tail != "" {
			if !strings.HasPrefix(tail, ":") {
				return Endpoint{}, fmt.Errorf("invalid port in endpoint %q", raw)
			}
			port, err := strconv.Atoi(tail[1:])
			if err != nil || port <= 0 || port > 65535 {
				return Endpoint{}, fmt.Errorf("invalid port in endpoint %q", raw)
			}
			ep.Port = port
		}
	case strings.Count(rest, ":") == 1:
		colon := strings.Index(rest, ":")
		port, err := strconv.Atoi(rest[colon+1:])
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid port in endpoint %q", raw)
		}
		ep.Port = port
		host = rest[:colon]
		// Multiple colons without brackets: a bare IPv6 literal, keep
		// the default port
	}

	if host == "" {
		return Endpoint{}, fmt.Errorf("missing host in endpoint %q", raw)
	}
	ep.Host = host

	return ep, nil
}

// ResolvePassword returns the literal password for the endpoint, looking
// up keyring references through the OS keyring.
func (e Endpoint) ResolvePassword() (string, error) {
	if !strings.HasPrefix(e.Password, keyringScheme) {
		return e.Password, nil
	}

	ref := strings.TrimPrefix(e.Password, keyringScheme)
	service, user, ok := strings.Cut(ref, "/")
	if !ok || service == "" || user == "" {
		return "", fmt.Errorf("invalid keyring reference %q (want keyring:service/user)", e.Password)
	}

	secret, err := keyring.Get(service, user)
	if err != nil {
		return "", fmt.Errorf("error resolving keyring reference %q: %v", e.Password, err)
	}

	return secret, nil
}

// StorePassword saves a password into the OS keyring so endpoints can
// reference it instead of embedding it in config files.
func StorePassword(service, user, password string) error {
	if err := keyring.Set(service, user, password); err != nil {
		return fmt.Errorf("error storing credential in keyring: %v", err)
	}
	return nil
}
