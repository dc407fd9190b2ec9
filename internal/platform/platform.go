// Package platform gives controllers access to environment state such as
// network reachability and the clipboard.
package platform

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
)

// Capabilities is the environment surface the controllers depend on
type Capabilities interface {
	// Online reports whether a network path to the API is available
	Online(ctx context.Context) bool

	// Copy places text on the system clipboard
	Copy(text string) error
}

// System implements Capabilities against the host machine
type System struct {
	probeAddr string
	timeout   time.Duration
	dial      func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSystem creates capabilities that probe the host of baseURL
func NewSystem(baseURL string) *System {
	var d net.Dialer
	return &System{
		probeAddr: probeAddress(baseURL),
		timeout:   2 * time.Second,
		dial:      d.DialContext,
	}
}

// Online dials the API host and reports false only when there is no
// network path to it. A refused or slow connection still counts as online
// so the request itself reports the failure. An unparsable base URL is
// treated as online for the same reason.
func (s *System) Online(ctx context.Context) bool {
	if s.probeAddr == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(ctx, "tcp", s.probeAddr)
	if err != nil {
		return !noRoute(err)
	}
	_ = conn.Close()
	return true
}

// noRoute reports whether a dial error means the host has no network path
func noRoute(err error) bool {
	if errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETDOWN) {
		return true
	}

	// The resolver could not reach a name server. A name that does not
	// exist is a configuration problem, not a lost connection.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}
	return false
}

// Copy places text on the system clipboard
func (s *System) Copy(text string) error {
	return clipboard.WriteAll(text)
}

// probeAddress returns host:port for a base URL, defaulting the port by scheme
func probeAddress(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Static is a fixed set of capabilities, used by tests and offline demos
type Static struct {
	IsOnline  bool
	Clipboard string
}

// Online returns the configured reachability
func (s *Static) Online(ctx context.Context) bool {
	return s.IsOnline
}

// Copy records text instead of touching the system clipboard
func (s *Static) Copy(text string) error {
	s.Clipboard = text
	return nil
}
